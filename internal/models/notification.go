package models

import "time"

// Kudos is an at-most-once appreciation record. The four-column unique index
// is the sole concurrency guard: a second kudos for the same
// sender/recipient/context lands on the constraint, not a new row.
type Kudos struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    string    `gorm:"size:64;not null;uniqueIndex:uniq_kudos;index" json:"sender_id"`
	RecipientID string    `gorm:"size:64;not null;uniqueIndex:uniq_kudos" json:"recipient_id"`
	ContextType string    `gorm:"size:32;not null;uniqueIndex:uniq_kudos" json:"context_type"`
	ContextID   string    `gorm:"size:64;not null;uniqueIndex:uniq_kudos" json:"context_id"`
	MessageID   *uint     `json:"message_id,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// Notification is a generic fanout alert (task assignment, celebration,
// reminder). Inserted once per logical event by the triggering subsystem.
type Notification struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Type        string    `gorm:"size:32;not null" json:"type"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	IsRead      bool      `gorm:"not null;default:false" json:"is_read"`
	RelatedType string    `gorm:"size:32" json:"related_type,omitempty"`
	RelatedID   string    `gorm:"size:64" json:"related_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
