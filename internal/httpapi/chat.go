package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sandwichops/relay/internal/chat"
	"github.com/sandwichops/relay/internal/fanout"
	"github.com/sandwichops/relay/internal/ws"
)

func registerChatRoutes(api *gin.RouterGroup, db *gorm.DB, hub *ws.Hub) {
	api.POST("/conversations", handleCreateConversation(db))
	api.POST("/conversations/:id/participants", handleAddParticipant(db))
	api.GET("/conversations/:id/messages", handleHistory(db))
	api.POST("/conversations/:id/messages", handleSend(db, hub))
	api.PATCH("/conversations/:id/read", handleMarkConversationRead(db))
	api.GET("/conversations/:id/unread", handleUnreadCount(db))

	api.PATCH("/messages/:id", handleEditMessage(db))
	api.DELETE("/messages/:id", handleDeleteMessage(db))
	api.POST("/messages/:id/like", handleLike(db))
	api.DELETE("/messages/:id/like", handleUnlike(db))
	api.GET("/messages/:id/likes", handleLikes(db))

	api.PATCH("/messages/:id/receipt", handleReceiptRead(db))
	api.PATCH("/messages/:id/email-sent", handleEmailSent(db))
	api.POST("/receipts/read-all", handleReceiptReadAll(db))
	api.GET("/receipts/unread", handleUnreadLedger(db))
	api.GET("/receipts/unsent", handleUnsentLedger(db))
}

func handleCreateConversation(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		Type           string   `json:"type"`
		Name           string   `json:"name"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		conv, err := chat.CreateConversation(db, chat.CreateOpts{
			Type:           req.Type,
			Name:           req.Name,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

func handleAddParticipant(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		UserID string `json:"user_id"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"user_id"}})
			return
		}
		if err := chat.AddParticipant(db, id, req.UserID); err != nil {
			fail(c, err)
			return
		}
		// Re-adding an existing participant lands here too.
		c.JSON(http.StatusOK, gin.H{"conversation_id": id, "user_id": req.UserID})
	}
}

func handleSend(db *gorm.DB, hub *ws.Hub) gin.HandlerFunc {
	type request struct {
		Content          string `json:"content"`
		ReplyToMessageID *uint  `json:"reply_to_message_id,omitempty"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		msg, err := chat.Send(db, id, userID(c), userName(c), req.Content, chat.SendOpts{
			ReplyToMessageID: req.ReplyToMessageID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		res, err := fanout.Fanout(db, hub, msg)
		if err != nil {
			fail(c, err)
			return
		}
		hub.PushAll(res.Online, ws.Event{Type: "message.new", Data: msg})
		c.JSON(http.StatusCreated, gin.H{
			"message":  msg,
			"delivery": res,
		})
	}
}

func handleHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var opts chat.HistoryOpts
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"limit"}})
				return
			}
			opts.Limit = n
		}
		if v := c.Query("before_id"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"before_id"}})
				return
			}
			before := uint(n)
			opts.BeforeID = &before
		}
		msgs, err := chat.History(db, id, userID(c), opts)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func handleMarkConversationRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			At *time.Time `json:"at"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"at"}})
				return
			}
		}
		// A stale at is accepted; the cursor never moves backwards.
		at := time.Now()
		if req.At != nil {
			at = *req.At
		}
		if err := chat.MarkRead(db, id, userID(c), at); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	}
}

func handleUnreadCount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		count, err := chat.UnreadCount(db, id, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

func handleEditMessage(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		Content string `json:"content"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		msg, err := chat.Edit(db, id, userID(c), req.Content)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func handleDeleteMessage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := chat.Delete(db, id, userID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id})
	}
}

func handleLike(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := chat.Like(db, id, userID(c), userName(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id})
	}
}

func handleUnlike(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := chat.Unlike(db, id, userID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id})
	}
}

func handleLikes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		likes, err := chat.Likes(db, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"likes": likes})
	}
}

func handleReceiptRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := fanout.MarkRead(db, id, userID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id})
	}
}

func handleReceiptReadAll(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := fanout.MarkAllRead(db, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleEmailSent(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		RecipientID string `json:"recipient_id"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil || req.RecipientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"recipient_id"}})
			return
		}
		if err := fanout.MarkEmailSent(db, id, req.RecipientID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id, "recipient_id": req.RecipientID})
	}
}

func handleUnreadLedger(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := fanout.UnreadLedger(db, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"receipts": rows})
	}
}

// handleUnsentLedger feeds the external email dispatcher: every ledger row
// still unread with no email stamp, across all users.
func handleUnsentLedger(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := fanout.Unsent(db)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"receipts": rows})
	}
}
