package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orderflow-labs/orderflow/internal/notifier/domain"
	"github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"github.com/orderflow-labs/orderflow/internal/notifier/ws"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("notification belongs to another user")

type NotifierService interface {
	HandleOrderStatus(ctx context.Context, event *generalDomain.OrderStatusEvent) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id, userID string) error
}

type notifierService struct {
	logger           *zap.Logger
	notificationRepo repository.NotificationRepository
	hub              *ws.Hub
	tracer           trace.Tracer
}

func NewNotifierService(
	logger *zap.Logger,
	notificationRepo repository.NotificationRepository,
	hub *ws.Hub,
) NotifierService {
	return &notifierService{
		logger:           logger,
		notificationRepo: notificationRepo,
		hub:              hub,
		tracer:           otel.Tracer("notifier_service"),
	}
}

// HandleOrderStatus turns a saga status event into a stored notification and
// pushes it to the user's live connections. The push is best effort; the
// stored row is what a reconnecting client replays.
func (s *notifierService) HandleOrderStatus(ctx context.Context, event *generalDomain.OrderStatusEvent) error {
	ctx, span := s.tracer.Start(ctx, "NotifierService.HandleOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.String("status", event.Status),
	)

	notificationType, title, message := domain.TypeForStatus(event.OrderID, event.Status, event.InventoryStatus)

	data, err := json.Marshal(map[string]string{
		"orderId":         event.OrderID,
		"status":          event.Status,
		"inventoryStatus": event.InventoryStatus,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	notification := &domain.Notification{
		ID:      uuid.NewString(),
		UserID:  event.UserID,
		OrderID: event.OrderID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data:    data,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return err
	}

	delivered := s.hub.Push(event.UserID, ws.Frame{
		Type:      ws.FrameOrderUpdate,
		Data:      notification,
		Timestamp: time.Now().UTC(),
	})

	mylogger.Info(
		ctx,
		s.logger,
		"Order status notification stored",
		zap.String("order_id", event.OrderID),
		zap.String("type", string(notificationType)),
		zap.Int("live_deliveries", delivered),
	)

	return nil
}

func (s *notifierService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	if unreadOnly {
		return s.notificationRepo.ListUnread(ctx, userID)
	}
	return s.notificationRepo.ListByUser(ctx, userID)
}

func (s *notifierService) MarkRead(ctx context.Context, id, userID string) error {
	notification, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		return ErrForbidden
	}

	return s.notificationRepo.SetRead(ctx, id)
}

func (s *notifierService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

func (s *notifierService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.notificationRepo.UnreadCount(ctx, userID)
}

func (s *notifierService) DeleteNotification(ctx context.Context, id, userID string) error {
	notification, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		return ErrForbidden
	}

	return s.notificationRepo.Delete(ctx, id)
}
