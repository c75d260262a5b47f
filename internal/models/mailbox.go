package models

import "time"

// MailboxMessage is an independent Gmail-style message: one sender, one
// recipient, no threading. Folder membership is derived from the boolean
// flags rather than stored as a state enum.
type MailboxMessage struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID       string `gorm:"size:64;not null;index" json:"sender_id"`
	SenderName     string `gorm:"size:128;not null" json:"sender_name"`
	SenderEmail    string `gorm:"size:190" json:"sender_email"`
	RecipientID    string `gorm:"size:64;not null;index" json:"recipient_id"`
	RecipientName  string `gorm:"size:128;not null" json:"recipient_name"`
	RecipientEmail string `gorm:"size:190" json:"recipient_email"`
	Subject        string `gorm:"size:256;not null" json:"subject"`
	Content        string `gorm:"type:text;not null" json:"content"`

	IsRead     bool `gorm:"not null;default:false;index" json:"is_read"`
	IsStarred  bool `gorm:"not null;default:false" json:"is_starred"`
	IsArchived bool `gorm:"not null;default:false" json:"is_archived"`
	IsTrashed  bool `gorm:"not null;default:false;index" json:"is_trashed"`
	IsDraft    bool `gorm:"not null;default:false;index" json:"is_draft"`

	// Optional link to the entity the message is about.
	ContextType  string `gorm:"size:32" json:"context_type,omitempty"`
	ContextID    string `gorm:"size:64" json:"context_id,omitempty"`
	ContextTitle string `gorm:"size:256" json:"context_title,omitempty"`

	ReadAt    *time.Time `json:"read_at,omitempty"`
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
