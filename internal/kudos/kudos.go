// Package kudos records at-most-once appreciation events and the
// notification feed they land in. Duplicate sends are absorbed by the
// kudos table's unique index rather than a read-then-write check, so two
// racing requests still produce exactly one row and one notification.
package kudos

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationKudos is the feed type stamped on kudos alerts.
const NotificationKudos = "kudos"

// RecordOpts names a single kudos event. MessageID optionally links the
// chat message that triggered it.
type RecordOpts struct {
	SenderID    string
	RecipientID string
	ContextType string
	ContextID   string
	MessageID   *uint
}

// Record stores a kudos and, when it is the first for this
// sender/recipient/context, a feed notification for the recipient. The
// returned bool reports whether a new row was created; a repeat send
// returns the original row with created=false and writes nothing.
func Record(db *gorm.DB, opts RecordOpts) (*models.Kudos, bool, error) {
	var fields []string
	if opts.SenderID == "" {
		fields = append(fields, "sender_id")
	}
	if opts.RecipientID == "" {
		fields = append(fields, "recipient_id")
	}
	if opts.ContextType == "" {
		fields = append(fields, "context_type")
	}
	if opts.ContextID == "" {
		fields = append(fields, "context_id")
	}
	if len(fields) > 0 {
		return nil, false, apperr.Validation(fields...)
	}
	if opts.SenderID == opts.RecipientID {
		return nil, false, apperr.Validation("recipient_id")
	}

	k := models.Kudos{
		SenderID:    opts.SenderID,
		RecipientID: opts.RecipientID,
		ContextType: opts.ContextType,
		ContextID:   opts.ContextID,
		MessageID:   opts.MessageID,
		SentAt:      time.Now(),
	}

	created := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&k)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		n := models.Notification{
			UserID:      opts.RecipientID,
			Type:        NotificationKudos,
			Title:       "You received kudos!",
			Message:     fmt.Sprintf("%s sent you kudos", opts.SenderID),
			RelatedType: opts.ContextType,
			RelatedID:   opts.ContextID,
			CreatedAt:   time.Now(),
		}
		return tx.Create(&n).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("kudos: record: %w", err)
	}

	if !created {
		existing, err := find(db, opts)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &k, true, nil
}

// AlreadySent reports whether the sender has kudos'd this context before.
func AlreadySent(db *gorm.DB, senderID, recipientID, contextType, contextID string) (bool, error) {
	var count int64
	err := db.Model(&models.Kudos{}).
		Where("sender_id = ? AND recipient_id = ? AND context_type = ? AND context_id = ?",
			senderID, recipientID, contextType, contextID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("kudos: already sent: %w", err)
	}
	return count > 0, nil
}

// SentBy lists a user's outgoing kudos, newest first.
func SentBy(db *gorm.DB, senderID string) ([]models.Kudos, error) {
	var out []models.Kudos
	err := db.Where("sender_id = ?", senderID).
		Order("sent_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("kudos: sent by %s: %w", senderID, err)
	}
	return out, nil
}

// Notify appends a notification to a user's feed. Callers outside this
// package use it for alerts that are not kudos (mentions, reminders).
func Notify(db *gorm.DB, userID, typ, title, message, relatedType, relatedID string) (*models.Notification, error) {
	var fields []string
	if userID == "" {
		fields = append(fields, "user_id")
	}
	if typ == "" {
		fields = append(fields, "type")
	}
	if title == "" {
		fields = append(fields, "title")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}
	n := models.Notification{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Message:     message,
		RelatedType: relatedType,
		RelatedID:   relatedID,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("kudos: notify %s: %w", userID, err)
	}
	return &n, nil
}

// FeedOpts narrows the notification feed.
type FeedOpts struct {
	UnreadOnly bool
	Limit      int
}

// Feed returns a user's notifications, newest first.
func Feed(db *gorm.DB, userID string, opts FeedOpts) ([]models.Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := db.Where("user_id = ?", userID)
	if opts.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("kudos: feed for %s: %w", userID, err)
	}
	return out, nil
}

// MarkNotificationRead flips a notification to read. Only the feed owner
// may do so; marking twice is a no-op.
func MarkNotificationRead(db *gorm.DB, id uint, userID string) error {
	n, err := getNotification(db, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return apperr.ErrForbidden
	}
	err = db.Model(&models.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("kudos: mark notification %d read: %w", id, err)
	}
	return nil
}

// DeleteNotification removes a notification from the owner's feed.
func DeleteNotification(db *gorm.DB, id uint, userID string) error {
	n, err := getNotification(db, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return apperr.ErrForbidden
	}
	if err := db.Delete(&models.Notification{}, id).Error; err != nil {
		return fmt.Errorf("kudos: delete notification %d: %w", id, err)
	}
	return nil
}

// UnreadNotifications counts a user's unread feed entries.
func UnreadNotifications(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("kudos: unread notifications for %s: %w", userID, err)
	}
	return count, nil
}

func find(db *gorm.DB, opts RecordOpts) (*models.Kudos, error) {
	var k models.Kudos
	err := db.Where("sender_id = ? AND recipient_id = ? AND context_type = ? AND context_id = ?",
		opts.SenderID, opts.RecipientID, opts.ContextType, opts.ContextID).
		First(&k).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kudos: find: %w", err)
	}
	return &k, nil
}

func getNotification(db *gorm.DB, id uint) (*models.Notification, error) {
	var n models.Notification
	err := db.First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kudos: get notification %d: %w", id, err)
	}
	return &n, nil
}
