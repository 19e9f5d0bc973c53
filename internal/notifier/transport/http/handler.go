package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/orderflow-labs/orderflow/internal/notifier/domain"
	"github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"github.com/orderflow-labs/orderflow/internal/notifier/service"
	"github.com/orderflow-labs/orderflow/internal/notifier/ws"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	service service.NotifierService
	hub     *ws.Hub
	logger  *zap.Logger
}

func NewNotificationHandler(service service.NotifierService, hub *ws.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)
	unreadOnly := c.Query("read") == "false"

	notifications, err := h.service.ListNotifications(c.UserContext(), userID, unreadOnly)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)

	if err := h.service.MarkRead(c.UserContext(), c.Params("id"), userID); err != nil {
		return h.notificationError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)

	updated, err := h.service.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("mark all read failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{"updated": updated})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)

	count, err := h.service.UnreadCount(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("unread count failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{"count": count})
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)

	if err := h.service.DeleteNotification(c.UserContext(), c.Params("id"), userID); err != nil {
		return h.notificationError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification deleted"})
}

func (h *NotificationHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.hub.Stats())
}

func (h *NotificationHandler) notificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotificationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	default:
		h.logger.Error("notification operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
