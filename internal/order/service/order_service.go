package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	notifierDomain "github.com/orderflow-labs/orderflow/internal/notifier/domain"
	notifierRepo "github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"github.com/orderflow-labs/orderflow/internal/order/domain"
	"github.com/orderflow-labs/orderflow/internal/order/repository"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	outboxDomain "github.com/orderflow-labs/orderflow/pkg/outbox/domain"
	"github.com/orderflow-labs/orderflow/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("order belongs to another user")

type OrderItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

type CreateOrderInput struct {
	Items []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// StatusUpdate carries the optional fields of a saga-driven status change.
// Nil means leave as is.
type StatusUpdate struct {
	Status          *string
	InventoryStatus *string
	FailureReason   *string
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID, idempotencyKey string, input CreateOrderInput) (*domain.Order, bool, error)
	GetOrder(ctx context.Context, id, userID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (*domain.Order, error)
	HandleInventoryResult(ctx context.Context, event *generalDomain.InventoryResultEvent) error
}

type orderService struct {
	pool             *pgxpool.Pool
	logger           *zap.Logger
	orderRepo        repository.OrderRepository
	notificationRepo notifierRepo.NotificationRepository
	outboxRepo       worker.OutboxRepository
	tracer           trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	notificationRepo notifierRepo.NotificationRepository,
	outboxRepo worker.OutboxRepository,
) OrderService {
	return &orderService{
		pool:             pool,
		logger:           logger,
		orderRepo:        orderRepo,
		notificationRepo: notificationRepo,
		outboxRepo:       outboxRepo,
		tracer:           otel.Tracer("order_service"),
	}
}

func (s *orderService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			shutdownCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}

// CreateOrder places an order for the given user. The order, its items and
// the order.created outbox row commit in one transaction. A repeated
// idempotency key returns the stored order with replayed = true; prices are
// read from the catalog at intake time, never taken from the request.
func (s *orderService) CreateOrder(
	ctx context.Context,
	userID, idempotencyKey string,
	input CreateOrderInput,
) (*domain.Order, bool, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("items_count", len(input.Items)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	existing, err := s.orderRepo.GetByIdempotencyKey(ctx, tx, userID, idempotencyKey)
	if err == nil {
		mylogger.Info(
			ctx,
			s.logger,
			"Idempotency key replay, returning stored order",
			zap.String("order_id", existing.ID),
		)

		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, false, err
	}

	items := make([]domain.OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		snapshot, err := s.orderRepo.GetProductSnapshot(ctx, tx, in.ProductID)
		if err != nil {
			return nil, false, err
		}

		if !snapshot.IsActive {
			return nil, false, fmt.Errorf("%w: %s", repository.ErrProductInactive, in.ProductID)
		}

		items = append(items, domain.OrderItem{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: snapshot.Price,
		})
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		TotalAmount:     domain.CalculateTotal(items),
		Status:          domain.StatusPending,
		InventoryStatus: domain.InventoryPending,
		PaymentStatus:   domain.PaymentPending,
		IdempotencyKey:  idempotencyKey,
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		// A concurrent request with the same key won the insert race;
		// its committed order is the canonical response.
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			s.rollback(ctx, tx)

			winner, findErr := s.orderRepo.FindByIdempotencyKey(ctx, userID, idempotencyKey)
			if findErr != nil {
				return nil, false, findErr
			}

			return winner, true, nil
		}

		return nil, false, err
	}

	if err := s.emitOrderCreated(ctx, tx, order); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit order", zap.Error(err))
		return nil, false, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID),
		zap.Int64("total_amount", order.TotalAmount),
	)

	return order, false, nil
}

func (s *orderService) GetOrder(ctx context.Context, id, userID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
	)

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.UserID != userID {
		return nil, ErrForbidden
	}

	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.applyStatus(ctx, tx, order, update); err != nil {
		return nil, err
	}

	if err := s.emitOrderStatus(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return order, nil
}

// applyStatus mutates the order row and bumps its version on the caller's
// transaction. Only UpdateOrderStatus follows up with an order.status outbox
// row; the saga path stores its notification directly instead, so each order
// outcome reaches the user exactly once.
func (s *orderService) applyStatus(ctx context.Context, tx pgx.Tx, order *domain.Order, update StatusUpdate) error {
	if update.Status != nil {
		order.Status = *update.Status
	}
	if update.InventoryStatus != nil {
		order.InventoryStatus = *update.InventoryStatus
	}
	if update.FailureReason != nil {
		order.FailureReason = update.FailureReason
	}
	order.Version++

	return s.orderRepo.UpdateStatus(ctx, tx, order)
}

// HandleInventoryResult advances the saga on a per-item reservation outcome.
// A FAILED result fails the whole order and writes the ORDER_FAILED
// notification in the same transaction as the status change.
func (s *orderService) HandleInventoryResult(ctx context.Context, event *generalDomain.InventoryResultEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandleInventoryResult")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.String("product_id", event.ProductID),
		attribute.String("status", event.Status),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetByIDTx(ctx, tx, event.OrderID)
	if err != nil {
		return err
	}

	switch event.Status {
	case generalDomain.ResultSuccess:
		if event.ReservationID != "" {
			if err := s.orderRepo.SetItemReservation(ctx, tx, event.OrderID, event.ProductID, event.ReservationID); err != nil {
				return err
			}
		}

		// A failed order stays failed; later per-item successes only
		// record their reservation for release bookkeeping.
		if order.Status != domain.StatusFailed && order.InventoryStatus != domain.InventoryReserved {
			reserved := domain.InventoryReserved
			if err := s.applyStatus(ctx, tx, order, StatusUpdate{InventoryStatus: &reserved}); err != nil {
				return err
			}
		}

	case generalDomain.ResultFailed:
		// The first failed item settles the order; result events for the
		// remaining items must not write another notification.
		if order.Status != domain.StatusFailed {
			failed := domain.StatusFailed
			inventoryFailed := domain.InventoryFailed
			reason := event.Reason
			if reason == "" {
				reason = "Stock reservation failed"
			}

			if err := s.applyStatus(ctx, tx, order, StatusUpdate{
				Status:          &failed,
				InventoryStatus: &inventoryFailed,
				FailureReason:   &reason,
			}); err != nil {
				return err
			}

			if err := s.writeFailureNotification(ctx, tx, order, reason); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown inventory result status %q", event.Status)
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit inventory result", zap.Error(err))
		return err
	}

	return nil
}

func (s *orderService) writeFailureNotification(ctx context.Context, tx pgx.Tx, order *domain.Order, reason string) error {
	data, err := json.Marshal(map[string]string{
		"orderId": order.ID,
		"reason":  reason,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	return s.notificationRepo.CreateTx(ctx, tx, &notifierDomain.Notification{
		ID:      uuid.NewString(),
		UserID:  order.UserID,
		OrderID: order.ID,
		Type:    notifierDomain.TypeOrderFailed,
		Title:   "Order Failed",
		Message: fmt.Sprintf("Your order %s could not be completed: %s", order.ID, reason),
		Data:    data,
	})
}

func (s *orderService) emitOrderCreated(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	itemRefs := make([]generalDomain.OrderItemRef, 0, len(order.Items))
	for _, item := range order.Items {
		itemRefs = append(itemRefs, generalDomain.OrderItemRef{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	payload, err := json.Marshal(&generalDomain.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       itemRefs,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order.created: %w", err)
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, &outboxDomain.OutboxEvent{
		AggregateID:   order.ID,
		AggregateType: "Order",
		EventType:     generalDomain.TopicOrderCreated,
		Payload:       payload,
		Topic:         generalDomain.TopicOrderCreated,
	})
}

func (s *orderService) emitOrderStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	payload, err := json.Marshal(&generalDomain.OrderStatusEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		InventoryStatus: order.InventoryStatus,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order.status: %w", err)
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, &outboxDomain.OutboxEvent{
		AggregateID:   order.ID,
		AggregateType: "Order",
		EventType:     generalDomain.TopicOrderStatus,
		Payload:       payload,
		Topic:         generalDomain.TopicOrderStatus,
	})
}
