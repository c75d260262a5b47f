// Package fanout maintains the per-recipient delivery ledger.
package fanout

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/chat"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Presence reports which of the given users have a live connection.
type Presence interface {
	Online(userIDs []string) []string
}

// Result is the recipient split produced by a fanout: who to push to now
// and who needs a deferred notification.
type Result struct {
	Recipients []string `json:"recipients"`
	Online     []string `json:"online,omitempty"`
	Offline    []string `json:"offline,omitempty"`
}

// Fanout creates one delivery-ledger row per conversation participant except
// the sender, all within one transaction. The ledger's unique
// (message, recipient) index makes retried fanouts safe: duplicate rows land
// on the constraint and are swallowed, so repeating the call leaves the
// ledger unchanged. presence may be nil, in which case every recipient is
// treated as offline.
func Fanout(db *gorm.DB, presence Presence, msg *models.Message) (*Result, error) {
	participants, err := chat.Participants(db, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(participants))
	for _, id := range participants {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}

	res := &Result{Recipients: recipients}
	if len(recipients) == 0 {
		return res, nil
	}

	if presence != nil {
		res.Online = presence.Online(recipients)
	}
	online := make(map[string]bool, len(res.Online))
	for _, id := range res.Online {
		online[id] = true
	}
	for _, id := range recipients {
		if !online[id] {
			res.Offline = append(res.Offline, id)
		}
	}

	now := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		rows := make([]models.MessageRecipient, 0, len(recipients))
		for _, id := range recipients {
			rows = append(rows, models.MessageRecipient{
				MessageID:        msg.ID,
				RecipientID:      id,
				Read:             false,
				NotificationSent: online[id],
				CreatedAt:        now,
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("fanout: create ledger rows for message %d: %w", msg.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MarkRead marks a ledger row read. If the caller is the message's sender
// the call is a successful no-op: senders have no ledger row and their own
// messages are always considered read. A recipient marking an already-read
// row is likewise a no-op.
func MarkRead(db *gorm.DB, messageID uint, userID string) error {
	var msg models.Message
	if err := db.Select("id", "sender_id").First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("fanout: message %d: %w", messageID, apperr.ErrNotFound)
		}
		return fmt.Errorf("fanout: lookup message %d: %w", messageID, err)
	}
	if msg.SenderID == userID {
		return nil
	}

	result := db.Model(&models.MessageRecipient{}).
		Where("message_id = ? AND recipient_id = ? AND is_read = ?", messageID, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("fanout: mark read %d/%s: %w", messageID, userID, result.Error)
	}
	return nil
}

// MarkAllRead marks every unread ledger row for a user and returns how many
// rows changed.
func MarkAllRead(db *gorm.DB, userID string) (int64, error) {
	result := db.Model(&models.MessageRecipient{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		return 0, fmt.Errorf("fanout: mark all read for %s: %w", userID, result.Error)
	}
	return result.RowsAffected, nil
}

// MarkEmailSent stamps a ledger row once the external mailer confirms
// dispatch. Stamping twice keeps the first timestamp.
func MarkEmailSent(db *gorm.DB, messageID uint, recipientID string) error {
	result := db.Model(&models.MessageRecipient{}).
		Where("message_id = ? AND recipient_id = ? AND email_sent_at IS NULL", messageID, recipientID).
		Update("email_sent_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("fanout: mark email sent %d/%s: %w", messageID, recipientID, result.Error)
	}
	return nil
}

// Unsent returns ledger rows that are still unread and have not had an email
// dispatched, the work queue for the deferred-notification pass.
func Unsent(db *gorm.DB) ([]models.MessageRecipient, error) {
	var rows []models.MessageRecipient
	err := db.Where("is_read = ? AND email_sent_at IS NULL", false).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fanout: unsent: %w", err)
	}
	return rows, nil
}

// UnreadLedger returns a user's unread ledger rows, oldest first.
func UnreadLedger(db *gorm.DB, userID string) ([]models.MessageRecipient, error) {
	var rows []models.MessageRecipient
	err := db.Where("recipient_id = ? AND is_read = ?", userID, false).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fanout: unread ledger for %s: %w", userID, err)
	}
	return rows, nil
}
