package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sandwichops/relay/internal/apperr"
)

const (
	headerUser = "X-Relay-User"
	headerName = "X-Relay-Name"

	ctxUserID   = "relay.userID"
	ctxUserName = "relay.userName"
)

// identity reads the proxy-set identity headers. Requests without a user
// are rejected before any handler runs. WebSocket clients cannot set
// headers, so the user query parameter is accepted as a fallback.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUser)
		if userID == "" {
			userID = c.Query("user")
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + headerUser})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUserName, c.GetHeader(headerName))
		c.Next()
	}
}

func userID(c *gin.Context) string   { return c.GetString(ctxUserID) }
func userName(c *gin.Context) string { return c.GetString(ctxUserName) }

// fail maps domain errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": ve.Fields})
		return
	}
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, apperr.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	log.Printf("httpapi: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// idParam parses the :id path segment.
func idParam(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "fields": []string{"id"}})
		return 0, false
	}
	return uint(n), true
}
