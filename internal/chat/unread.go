package chat

import (
	"fmt"

	"github.com/sandwichops/relay/internal/models"
	"gorm.io/gorm"
)

// UnreadCount returns the number of messages in a conversation created after
// the participant's read cursor, excluding the participant's own messages
// and soft-deleted ones. Pure read path; never mutates state.
//
// Messages stamped exactly at the cursor count as read: MarkRead(at) covers
// everything up to and including at, and message order within a timestamp is
// fixed by id, so the count is deterministic under coarse clocks.
func UnreadCount(db *gorm.DB, conversationID uint, userID string) (int64, error) {
	p, err := participant(db, conversationID, userID)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND deleted_at IS NULL AND created_at > ?",
			conversationID, userID, p.LastReadAt).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("chat: unread count %d/%s: %w", conversationID, userID, err)
	}
	return count, nil
}
