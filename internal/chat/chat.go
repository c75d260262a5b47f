// Package chat provides conversation, membership, and message primitives.
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

// CreateOpts holds parameters for creating a conversation.
type CreateOpts struct {
	Type           string
	Name           string
	ParticipantIDs []string
}

// CreateConversation creates a conversation and one participant row per id,
// in a single transaction. Direct conversations require exactly two
// participants; groups and channels require a name.
func CreateConversation(db *gorm.DB, opts CreateOpts) (*models.Conversation, error) {
	ids := dedupe(opts.ParticipantIDs)
	var fields []string
	switch opts.Type {
	case models.ConversationDirect:
		if len(ids) != 2 {
			fields = append(fields, fmt.Sprintf("direct conversation requires exactly 2 distinct participants, got %d", len(ids)))
		}
		if opts.Name != "" {
			fields = append(fields, "name is not allowed for direct conversations")
		}
	case models.ConversationGroup, models.ConversationChannel:
		if opts.Name == "" {
			fields = append(fields, "name is required for group and channel conversations")
		}
		if len(ids) == 0 {
			fields = append(fields, "at least one participant is required")
		}
	default:
		fields = append(fields, fmt.Sprintf("type must be direct, group, or channel, got %q", opts.Type))
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}

	now := time.Now()
	conv := models.Conversation{
		Type:      opts.Type,
		Name:      opts.Name,
		CreatedAt: now,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("chat: create conversation: %w", err)
		}
		parts := make([]models.Participant, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, models.Participant{
				ConversationID: conv.ID,
				UserID:         id,
				JoinedAt:       now,
				LastReadAt:     now,
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&parts).Error; err != nil {
			return fmt.Errorf("chat: create participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// dedupe returns ids with duplicates removed, first occurrence wins.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AddParticipant adds a user to a conversation. Re-adding an existing
// participant is a no-op: the insert lands on the composite primary key
// instead of racing a prior existence check.
func AddParticipant(db *gorm.DB, conversationID uint, userID string) error {
	if userID == "" {
		return apperr.Validation("user_id is required")
	}
	if err := conversationExists(db, conversationID); err != nil {
		return err
	}

	now := time.Now()
	p := models.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       now,
		LastReadAt:     now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return fmt.Errorf("chat: add participant %s to %d: %w", userID, conversationID, err)
	}
	return nil
}

// MarkRead advances a participant's read cursor to at. The cursor has a
// monotonic floor: a stale timestamp (an out-of-order retry, a second
// device) never moves it backwards.
func MarkRead(db *gorm.DB, conversationID uint, userID string, at time.Time) error {
	result := db.Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND last_read_at < ?", conversationID, userID, at).
		Update("last_read_at", at)
	if result.Error != nil {
		return fmt.Errorf("chat: mark read %d/%s: %w", conversationID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the cursor was already past at (fine) or the participant
		// doesn't exist (not fine). Tell them apart.
		if _, err := participant(db, conversationID, userID); err != nil {
			return err
		}
	}
	return nil
}

// Participants returns the user IDs of a conversation's members.
func Participants(db *gorm.DB, conversationID uint) ([]string, error) {
	var ids []string
	err := db.Model(&models.Participant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("chat: participants of %d: %w", conversationID, err)
	}
	return ids, nil
}

// conversationExists returns ErrNotFound if the conversation is unknown.
func conversationExists(db *gorm.DB, conversationID uint) error {
	var conv models.Conversation
	if err := db.Select("id").First(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("chat: conversation %d: %w", conversationID, apperr.ErrNotFound)
		}
		return fmt.Errorf("chat: lookup conversation %d: %w", conversationID, err)
	}
	return nil
}

// participant loads a participant row, mapping a miss to ErrForbidden when
// the conversation exists and ErrNotFound when it doesn't.
func participant(db *gorm.DB, conversationID uint, userID string) (*models.Participant, error) {
	var p models.Participant
	err := db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chat: lookup participant %d/%s: %w", conversationID, userID, err)
	}
	if err := conversationExists(db, conversationID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("chat: user %s is not a participant of %d: %w", userID, conversationID, apperr.ErrForbidden)
}
