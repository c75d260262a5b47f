package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sandwichops/relay/internal/mailbox"
)

func registerMailboxRoutes(api *gin.RouterGroup, db *gorm.DB) {
	api.POST("/mailbox", handleCompose(db))
	api.GET("/mailbox", handleFolder(db))
	api.GET("/mailbox/unread", handleMailboxUnread(db))
	api.GET("/mailbox/:id", handleGetMailboxMessage(db))
	api.PUT("/mailbox/:id", handleUpdateDraft(db))
	api.POST("/mailbox/:id/send", handleSendDraft(db))
	api.PATCH("/mailbox/:id", handleFlags(db))
}

// composeRequest is shared by compose and draft update. Sender identity
// always comes from the request headers, never the body.
type composeRequest struct {
	SenderEmail    string `json:"sender_email"`
	RecipientID    string `json:"recipient_id"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Content        string `json:"content"`
	ContextType    string `json:"context_type"`
	ContextID      string `json:"context_id"`
	ContextTitle   string `json:"context_title"`
	Draft          bool   `json:"draft"`
}

func (r composeRequest) opts(c *gin.Context) mailbox.ComposeOpts {
	return mailbox.ComposeOpts{
		SenderID:       userID(c),
		SenderName:     userName(c),
		SenderEmail:    r.SenderEmail,
		RecipientID:    r.RecipientID,
		RecipientName:  r.RecipientName,
		RecipientEmail: r.RecipientEmail,
		Subject:        r.Subject,
		Content:        r.Content,
		ContextType:    r.ContextType,
		ContextID:      r.ContextID,
		ContextTitle:   r.ContextTitle,
		Draft:          r.Draft,
	}
}

func handleCompose(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req composeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		msg, err := mailbox.Compose(db, req.opts(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleUpdateDraft(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req composeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		msg, err := mailbox.UpdateDraft(db, id, userID(c), req.opts(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func handleSendDraft(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		msg, err := mailbox.SendDraft(db, id, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func handleFlags(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		IsRead     *bool `json:"is_read,omitempty"`
		IsStarred  *bool `json:"is_starred,omitempty"`
		IsArchived *bool `json:"is_archived,omitempty"`
		IsTrashed  *bool `json:"is_trashed,omitempty"`
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
		msg, err := mailbox.UpdateFlags(db, id, userID(c), mailbox.FlagPatch{
			IsRead:     req.IsRead,
			IsStarred:  req.IsStarred,
			IsArchived: req.IsArchived,
			IsTrashed:  req.IsTrashed,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func handleGetMailboxMessage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		msg, err := mailbox.Get(db, id, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func handleFolder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		folder := c.DefaultQuery("folder", mailbox.FolderInbox)
		msgs, err := mailbox.Messages(db, userID(c), folder)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"folder": folder, "messages": msgs})
	}
}

func handleMailboxUnread(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := mailbox.UnreadCount(db, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}
