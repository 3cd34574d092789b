package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"agromart/notification-service/inbox"
	"agromart/pkg/telemetry"
	"agromart/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Inbox interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]inbox.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type Hub interface {
	Serve(userID string, conn *websocket.Conn)
}

type NotificationHandler struct {
	inbox    Inbox
	hub      Hub
	secret   []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewNotificationHandler(in Inbox, hub Hub, secret []byte, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		inbox:  in,
		hub:    hub,
		secret: secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(userIDKey)

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "limit must be a non-negative integer"})
		return
	}
	unreadOnly := c.Query("unread") == "true"

	notes, err := h.inbox.List(ctx, userID, unreadOnly, limit)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			zap.String("trace_id", telemetry.GetTraceID(ctx)),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": notes, "count": len(notes)})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(userIDKey)

	err := h.inbox.MarkRead(ctx, userID, c.Param("id"))
	if errors.Is(err, inbox.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Notification not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to mark notification read",
			zap.String("trace_id", telemetry.GetTraceID(ctx)),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification marked as read"})
}

// Stream upgrades to a websocket that receives the user's new notifications.
// Browsers cannot set headers on websocket requests, so the token comes from
// the query string.
func (h *NotificationHandler) Stream(c *gin.Context) {
	claims, err := token.Parse(h.secret, c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}
	h.hub.Serve(claims.UserID, conn)
}
