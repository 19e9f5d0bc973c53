package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/orderflow-labs/orderflow/internal/middleware"
	"github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"go.uber.org/zap"
)

// Frame is the envelope of every message on the notification socket.
type Frame struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

const (
	FrameConnection   = "connection"
	FrameNotification = "notification"
	FrameOrderUpdate  = "order.update"
	FrameError        = "error"
	FramePong         = "pong"
)

// UpgradeMiddleware rejects plain HTTP requests on the websocket route.
func UpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// NewClientHandler authenticates, replays the unread backlog and then serves
// ping/pong until the peer goes away.
func NewClientHandler(
	hub *Hub,
	notificationRepo repository.NotificationRepository,
	jwtSecret string,
	logger *zap.Logger,
) fiber.Handler {
	return websocket.New(func(socket *websocket.Conn) {
		userID, err := middleware.ParseUserID(socket.Query("token"), jwtSecret)
		if err != nil {
			_ = socket.WriteJSON(Frame{Type: FrameError, Message: "Invalid token"})
			_ = socket.Close()
			return
		}

		// Every write from here on goes through the registered conn; hub
		// pushes share the socket with this goroutine.
		conn := hub.Register(userID, socket)
		defer func() {
			hub.Unregister(conn)
			_ = conn.Close()
		}()

		_ = conn.WriteJSON(Frame{
			Type:      FrameConnection,
			Message:   "Connected to notification service",
			Timestamp: time.Now().UTC(),
		})

		replayBacklog(conn, notificationRepo, userID, logger)

		for {
			_, raw, err := socket.ReadMessage()
			if err != nil {
				return
			}

			var incoming Frame
			if err := json.Unmarshal(raw, &incoming); err != nil {
				continue
			}

			if incoming.Type == "ping" {
				_ = conn.WriteJSON(Frame{Type: FramePong, Timestamp: time.Now().UTC()})
			}
		}
	})
}

// replayBacklog pushes up to 50 unread notifications in storage order so a
// reconnecting client catches up on what it missed.
func replayBacklog(conn Conn, notificationRepo repository.NotificationRepository, userID string, logger *zap.Logger) {
	notifications, err := notificationRepo.ListUnread(context.Background(), userID)
	if err != nil {
		logger.Error("failed to load notification backlog",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	for i := range notifications {
		if err := conn.WriteJSON(Frame{
			Type: FrameNotification,
			Data: &notifications[i],
		}); err != nil {
			logger.Warn("backlog replay write failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
	}
}
