package models

import "time"

// Conversation types.
const (
	ConversationDirect  = "direct"
	ConversationGroup   = "group"
	ConversationChannel = "channel"
)

// Conversation is a container of messages with a fixed participant set.
// Direct conversations have no name; groups and channels require one.
type Conversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Name      string    `gorm:"size:256" json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"-"`
}

// Participant links a user to a conversation and carries their read cursor.
// The composite primary key makes re-adding a participant a no-op.
type Participant struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         string    `gorm:"primaryKey;size:64" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	LastReadAt     time.Time `gorm:"index" json:"last_read_at"`
}
