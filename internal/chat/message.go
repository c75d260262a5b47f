package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deletedMask replaces the content of soft-deleted messages in normal reads.
// The original content stays in storage for moderation.
const deletedMask = "This message has been deleted"

// SendOpts holds optional parameters for sending a message.
type SendOpts struct {
	ReplyToMessageID *uint
}

// Send appends a message to a conversation. The sender must be a
// participant. When replying, the parent's currently visible content and
// sender name are snapshotted into the new row, so later edits or deletes of
// the parent never change what the reply displays.
func Send(db *gorm.DB, conversationID uint, senderID, senderName, content string, opts SendOpts) (*models.Message, error) {
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	if _, err := participant(db, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if opts.ReplyToMessageID != nil {
		parent, err := getMessage(db, *opts.ReplyToMessageID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationID != conversationID {
			return nil, apperr.Validation("reply_to_message_id must reference a message in the same conversation")
		}
		msg.ReplyToMessageID = opts.ReplyToMessageID
		msg.ReplyToContent = visibleContent(parent)
		msg.ReplyToSender = parent.SenderName
	}

	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("chat: send: %w", err)
	}
	return &msg, nil
}

// Edit records an edit marker on a message. Only the original sender may
// edit; the original content is retained for audit history.
func Edit(db *gorm.DB, messageID uint, editorID, newContent string) (*models.Message, error) {
	if newContent == "" {
		return nil, apperr.Validation("content is required")
	}
	msg, err := getMessage(db, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, fmt.Errorf("chat: only the sender may edit message %d: %w", messageID, apperr.ErrForbidden)
	}
	if msg.DeletedAt != nil {
		return nil, fmt.Errorf("chat: message %d is deleted: %w", messageID, apperr.ErrNotFound)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"edited_at":      now,
		"edited_content": newContent,
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("chat: edit %d: %w", messageID, err)
	}
	msg.EditedAt = &now
	msg.EditedContent = newContent
	return msg, nil
}

// Delete soft-deletes a message: markers are set, the row is kept. Only the
// sender may delete. Deleting an already-deleted message is a no-op.
func Delete(db *gorm.DB, messageID uint, deleterID string) error {
	msg, err := getMessage(db, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != deleterID {
		return fmt.Errorf("chat: only the sender may delete message %d: %w", messageID, apperr.ErrForbidden)
	}
	if msg.DeletedAt != nil {
		return nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"deleted_at": now,
		"deleted_by": deleterID,
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		return fmt.Errorf("chat: delete %d: %w", messageID, err)
	}
	return nil
}

// HistoryOpts holds paging parameters for History.
type HistoryOpts struct {
	Limit    int
	BeforeID *uint // return messages with id < BeforeID
}

// History returns a conversation's messages in (created_at, id) order,
// oldest first. The caller must be a participant. Soft-deleted messages are
// returned with masked content.
func History(db *gorm.DB, conversationID uint, userID string, opts HistoryOpts) ([]models.Message, error) {
	if _, err := participant(db, conversationID, userID); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := db.Where("conversation_id = ?", conversationID)
	if opts.BeforeID != nil {
		q = q.Where("id < ?", *opts.BeforeID)
	}

	var msgs []models.Message
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: history of %d: %w", conversationID, err)
	}
	for i := range msgs {
		if msgs[i].DeletedAt != nil {
			msgs[i].Content = deletedMask
			msgs[i].EditedContent = ""
		}
	}
	return msgs, nil
}

// Like records that a user liked a message. Liking twice is a no-op.
func Like(db *gorm.DB, messageID uint, userID, userName string) error {
	msg, err := getMessage(db, messageID)
	if err != nil {
		return err
	}
	if msg.DeletedAt != nil {
		return fmt.Errorf("chat: message %d is deleted: %w", messageID, apperr.ErrNotFound)
	}
	like := models.MessageLike{
		MessageID: messageID,
		UserID:    userID,
		UserName:  userName,
		LikedAt:   time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
		return fmt.Errorf("chat: like %d: %w", messageID, err)
	}
	return nil
}

// Unlike removes a user's like from a message. Removing a like that was
// never recorded is a no-op.
func Unlike(db *gorm.DB, messageID uint, userID string) error {
	err := db.Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&models.MessageLike{}).Error
	if err != nil {
		return fmt.Errorf("chat: unlike %d: %w", messageID, err)
	}
	return nil
}

// Likes returns the likes on a message, oldest first.
func Likes(db *gorm.DB, messageID uint) ([]models.MessageLike, error) {
	var likes []models.MessageLike
	err := db.Where("message_id = ?", messageID).Order("liked_at ASC, id ASC").Find(&likes).Error
	if err != nil {
		return nil, fmt.Errorf("chat: likes of %d: %w", messageID, err)
	}
	return likes, nil
}

// visibleContent returns what a reader of the message currently sees:
// the edit if one exists, the mask if the message is deleted.
func visibleContent(msg *models.Message) string {
	if msg.DeletedAt != nil {
		return deletedMask
	}
	if msg.EditedAt != nil {
		return msg.EditedContent
	}
	return msg.Content
}

func getMessage(db *gorm.DB, messageID uint) (*models.Message, error) {
	var msg models.Message
	if err := db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat: message %d: %w", messageID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("chat: lookup message %d: %w", messageID, err)
	}
	return &msg, nil
}
