package models

import "time"

// Message is an append-only conversation message. Identity is immutable;
// edits and deletes are recorded as markers, the row is never rewritten.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	SenderID       string `gorm:"size:64;not null;index" json:"sender_id"`
	SenderName     string `gorm:"size:128" json:"sender_name"`
	Content        string `gorm:"type:text;not null" json:"content"`

	// Reply snapshot, captured at creation time. Later edits or deletes of
	// the parent never change what the reply displays.
	ReplyToMessageID *uint  `json:"reply_to_message_id,omitempty"`
	ReplyToContent   string `gorm:"type:text" json:"reply_to_content,omitempty"`
	ReplyToSender    string `gorm:"size:128" json:"reply_to_sender,omitempty"`

	EditedAt      *time.Time `json:"edited_at,omitempty"`
	EditedContent string     `gorm:"type:text" json:"edited_content,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `gorm:"size:64" json:"deleted_by,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// MessageRecipient is one delivery-ledger row per recipient per message.
// The unique index is the concurrency guard: duplicate fanout attempts hit
// the constraint instead of racing a prior existence check.
type MessageRecipient struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID        uint       `gorm:"not null;uniqueIndex:uniq_message_recipient" json:"message_id"`
	RecipientID      string     `gorm:"size:64;not null;uniqueIndex:uniq_message_recipient;index:idx_recipient_unread" json:"recipient_id"`
	// READ is reserved in MySQL, hence the explicit column name.
	Read             bool       `gorm:"column:is_read;not null;default:false;index:idx_recipient_unread" json:"read"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	NotificationSent bool       `gorm:"not null;default:false" json:"notification_sent"`
	EmailSentAt      *time.Time `json:"email_sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// MessageLike records one like per user per message.
type MessageLike struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:uniq_message_like" json:"message_id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:uniq_message_like" json:"user_id"`
	UserName  string    `gorm:"size:128" json:"user_name"`
	LikedAt   time.Time `json:"liked_at"`
}
