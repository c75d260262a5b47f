package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sandwichops/relay/internal/kudos"
)

func registerKudosRoutes(api *gin.RouterGroup, db *gorm.DB) {
	api.POST("/kudos", handleRecordKudos(db))
	api.GET("/kudos/sent", handleKudosSent(db))

	api.POST("/notifications", handleCreateNotification(db))
	api.GET("/notifications", handleFeed(db))
	api.PATCH("/notifications/:id/read", handleNotificationRead(db))
	api.DELETE("/notifications/:id", handleNotificationDelete(db))
}

func handleRecordKudos(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		RecipientID string `json:"recipient_id"`
		ContextType string `json:"context_type"`
		ContextID   string `json:"context_id"`
		MessageID   *uint  `json:"message_id,omitempty"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		k, created, err := kudos.Record(db, kudos.RecordOpts{
			SenderID:    userID(c),
			RecipientID: req.RecipientID,
			ContextType: req.ContextType,
			ContextID:   req.ContextID,
			MessageID:   req.MessageID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		// A repeat send returns the original row as a success.
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"kudos": k, "created": created})
	}
}

func handleKudosSent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := kudos.SentBy(db, userID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"kudos": out})
	}
}

func handleCreateNotification(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		UserID      string `json:"user_id"`
		Type        string `json:"type"`
		Title       string `json:"title"`
		Message     string `json:"message"`
		RelatedType string `json:"related_type"`
		RelatedID   string `json:"related_id"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"body"}})
			return
		}
		n, err := kudos.Notify(db, req.UserID, req.Type, req.Title, req.Message, req.RelatedType, req.RelatedID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, n)
	}
}

func handleFeed(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts kudos.FeedOpts
		if c.Query("unread") == "true" {
			opts.UnreadOnly = true
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"limit"}})
				return
			}
			opts.Limit = n
		}
		feed, err := kudos.Feed(db, userID(c), opts)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": feed})
	}
}

func handleNotificationRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := kudos.MarkNotificationRead(db, id, userID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification_id": id})
	}
}

func handleNotificationDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := kudos.DeleteNotification(db, id, userID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification_id": id})
	}
}
