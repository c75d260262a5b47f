// Package mailbox implements the Gmail-style direct message store. Folder
// membership is derived from independent boolean flags; isTrashed takes
// precedence over every other flag, so a message that is both archived and
// trashed appears only in Trash until it is untrashed.
package mailbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/gorm"
)

// Folder names accepted by Messages.
const (
	FolderInbox    = "inbox"
	FolderSent     = "sent"
	FolderDrafts   = "drafts"
	FolderStarred  = "starred"
	FolderArchived = "archived"
	FolderTrash    = "trash"
)

// ComposeOpts holds the fields of a new mailbox message.
type ComposeOpts struct {
	SenderID       string
	SenderName     string
	SenderEmail    string
	RecipientID    string
	RecipientName  string
	RecipientEmail string
	Subject        string
	Content        string
	ContextType    string
	ContextID      string
	ContextTitle   string
	Draft          bool
}

// Compose creates a mailbox message, either as a draft or sent immediately.
// Drafts only need a sender; sending requires recipient, subject, and
// content.
func Compose(db *gorm.DB, opts ComposeOpts) (*models.MailboxMessage, error) {
	var fields []string
	if opts.SenderID == "" {
		fields = append(fields, "sender_id is required")
	}
	if !opts.Draft {
		fields = append(fields, sendValidation(opts.RecipientID, opts.Subject, opts.Content)...)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}

	now := time.Now()
	msg := models.MailboxMessage{
		SenderID:       opts.SenderID,
		SenderName:     opts.SenderName,
		SenderEmail:    opts.SenderEmail,
		RecipientID:    opts.RecipientID,
		RecipientName:  opts.RecipientName,
		RecipientEmail: opts.RecipientEmail,
		Subject:        opts.Subject,
		Content:        opts.Content,
		IsDraft:        opts.Draft,
		ContextType:    opts.ContextType,
		ContextID:      opts.ContextID,
		ContextTitle:   opts.ContextTitle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("mailbox: compose: %w", err)
	}
	return &msg, nil
}

// UpdateDraft replaces a draft's editable fields. Only the sender may edit,
// and only while the message is still a draft.
func UpdateDraft(db *gorm.DB, id uint, senderID string, opts ComposeOpts) (*models.MailboxMessage, error) {
	msg, err := get(db, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != senderID {
		return nil, fmt.Errorf("mailbox: message %d belongs to another sender: %w", id, apperr.ErrForbidden)
	}
	if !msg.IsDraft {
		return nil, apperr.Validation("message has been sent and can no longer be edited")
	}

	updates := map[string]interface{}{
		"recipient_id":    opts.RecipientID,
		"recipient_name":  opts.RecipientName,
		"recipient_email": opts.RecipientEmail,
		"subject":         opts.Subject,
		"content":         opts.Content,
		"context_type":    opts.ContextType,
		"context_id":      opts.ContextID,
		"context_title":   opts.ContextTitle,
		"updated_at":      time.Now(),
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("mailbox: update draft %d: %w", id, err)
	}
	return get(db, id)
}

// SendDraft delivers a draft: isDraft is cleared and createdAt restamped to
// the send time. The transition is one-way; sending an already-sent message
// is a no-op. Recipient, subject, and content must be filled in by then.
func SendDraft(db *gorm.DB, id uint, senderID string) (*models.MailboxMessage, error) {
	msg, err := get(db, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != senderID {
		return nil, fmt.Errorf("mailbox: message %d belongs to another sender: %w", id, apperr.ErrForbidden)
	}
	if !msg.IsDraft {
		return msg, nil
	}
	if fields := sendValidation(msg.RecipientID, msg.Subject, msg.Content); len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_draft":   false,
		"created_at": now,
		"updated_at": now,
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("mailbox: send draft %d: %w", id, err)
	}
	return get(db, id)
}

// FlagPatch carries the flags a caller wants to change; nil fields are left
// alone. There is no isDraft field here: draft state only changes through
// SendDraft, never back.
type FlagPatch struct {
	IsRead     *bool
	IsStarred  *bool
	IsArchived *bool
	IsTrashed  *bool
}

// UpdateFlags applies a flag patch. Only the sender or the recipient of the
// message may touch it. Marking read stamps readAt; trashing stamps
// trashedAt for the retention job, untrashing clears it.
func UpdateFlags(db *gorm.DB, id uint, userID string, patch FlagPatch) (*models.MailboxMessage, error) {
	msg, err := Get(db, id, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	if patch.IsRead != nil {
		updates["is_read"] = *patch.IsRead
		if *patch.IsRead && msg.ReadAt == nil {
			updates["read_at"] = now
		}
	}
	if patch.IsStarred != nil {
		updates["is_starred"] = *patch.IsStarred
	}
	if patch.IsArchived != nil {
		updates["is_archived"] = *patch.IsArchived
	}
	if patch.IsTrashed != nil {
		updates["is_trashed"] = *patch.IsTrashed
		if *patch.IsTrashed {
			updates["trashed_at"] = now
		} else {
			updates["trashed_at"] = nil
		}
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("mailbox: update flags %d: %w", id, err)
	}
	return get(db, id)
}

// Get loads a mailbox message, enforcing that only the sender or recipient
// may read it.
func Get(db *gorm.DB, id uint, userID string) (*models.MailboxMessage, error) {
	msg, err := get(db, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID && msg.RecipientID != userID {
		return nil, fmt.Errorf("mailbox: message %d: %w", id, apperr.ErrForbidden)
	}
	return msg, nil
}

// Messages returns a user's view of a folder, newest first.
func Messages(db *gorm.DB, userID, folder string) ([]models.MailboxMessage, error) {
	q := db.Order("created_at DESC, id DESC")
	switch folder {
	case FolderInbox:
		q = q.Where("recipient_id = ? AND is_draft = ? AND is_trashed = ? AND is_archived = ?",
			userID, false, false, false)
	case FolderSent:
		q = q.Where("sender_id = ? AND is_draft = ? AND is_trashed = ?", userID, false, false)
	case FolderDrafts:
		q = db.Order("updated_at DESC, id DESC").
			Where("sender_id = ? AND is_draft = ? AND is_trashed = ?", userID, true, false)
	case FolderStarred:
		q = q.Where("(sender_id = ? OR recipient_id = ?) AND is_starred = ? AND is_draft = ? AND is_trashed = ?",
			userID, userID, true, false, false)
	case FolderArchived:
		q = q.Where("recipient_id = ? AND is_archived = ? AND is_trashed = ?", userID, true, false)
	case FolderTrash:
		q = q.Where("(sender_id = ? OR recipient_id = ?) AND is_trashed = ?", userID, userID, true)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown folder %q", folder))
	}

	var msgs []models.MailboxMessage
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("mailbox: folder %s for %s: %w", folder, userID, err)
	}
	return msgs, nil
}

// UnreadCount returns how many inbox messages a user has not read yet.
func UnreadCount(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.MailboxMessage{}).
		Where("recipient_id = ? AND is_read = ? AND is_draft = ? AND is_trashed = ?",
			userID, false, false, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("mailbox: unread count for %s: %w", userID, err)
	}
	return count, nil
}

// PurgeTrash hard-deletes messages trashed at or before cutoff and returns
// how many rows were removed. Called by the retention job.
func PurgeTrash(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("is_trashed = ? AND trashed_at <= ?", true, cutoff).
		Delete(&models.MailboxMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("mailbox: purge trash: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func sendValidation(recipientID, subject, content string) []string {
	var fields []string
	if recipientID == "" {
		fields = append(fields, "recipient_id is required")
	}
	if subject == "" {
		fields = append(fields, "subject is required")
	}
	if content == "" {
		fields = append(fields, "content is required")
	}
	return fields
}

func get(db *gorm.DB, id uint) (*models.MailboxMessage, error) {
	var msg models.MailboxMessage
	if err := db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("mailbox: message %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("mailbox: lookup message %d: %w", id, err)
	}
	return &msg, nil
}
