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
	"github.com/orderflow-labs/orderflow/internal/inventory/domain"
	"github.com/orderflow-labs/orderflow/internal/inventory/repository"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	outboxDomain "github.com/orderflow-labs/orderflow/pkg/outbox/domain"
	"github.com/orderflow-labs/orderflow/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reservation attempts on the consumer path re-read fresh state after a
// version conflict before giving up.
const reserveAttempts = 3

type InventoryService interface {
	Reserve(ctx context.Context, orderID, productID string, quantity int64) (*domain.Product, error)
	Release(ctx context.Context, productID string, quantity int64) (*domain.Product, error)
	Confirm(ctx context.Context, productID string, quantity int64) (*domain.Product, error)
	HandleOrderCreated(ctx context.Context, event *generalDomain.OrderCreatedEvent) error
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error)
}

type inventoryService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	tracer      trace.Tracer
}

func NewInventoryService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
) InventoryService {
	return &inventoryService{
		pool:        pool,
		logger:      logger,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		tracer:      otel.Tracer("inventory_service"),
	}
}

func (s *inventoryService) rollback(ctx context.Context, tx pgx.Tx) {
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

// Reserve promises quantity units of a product to an order. A FAILED or
// SUCCESS inventory.result row is written in the same transaction as the
// stock change, keyed by the order id.
func (s *inventoryService) Reserve(ctx context.Context, orderID, productID string, quantity int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	product, err := s.productRepo.GetByIDTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	updated, err := domain.Reserve(*product, quantity)
	if err != nil {
		var insufficientErr *domain.InsufficientStockError
		if errors.As(err, &insufficientErr) {
			if outboxErr := s.emitResult(ctx, tx, &generalDomain.InventoryResultEvent{
				OrderID:   orderID,
				ProductID: productID,
				Quantity:  quantity,
				Status:    generalDomain.ResultFailed,
				Reason:    "Insufficient stock",
				Timestamp: time.Now().UTC(),
			}); outboxErr != nil {
				return nil, outboxErr
			}

			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, commitErr
			}
		}

		return nil, err
	}

	if err := s.productRepo.UpdateGuarded(ctx, tx, updated, product.Version); err != nil {
		return nil, err
	}

	if err := s.emitResult(ctx, tx, &generalDomain.InventoryResultEvent{
		OrderID:       orderID,
		ProductID:     productID,
		Quantity:      quantity,
		Status:        generalDomain.ResultSuccess,
		ReservationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit reservation", zap.Error(err))
		return nil, err
	}

	return &updated, nil
}

func (s *inventoryService) Release(ctx context.Context, productID string, quantity int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Release")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	return s.applyGuarded(ctx, productID, func(p domain.Product) (domain.Product, error) {
		return domain.Release(p, quantity)
	})
}

func (s *inventoryService) Confirm(ctx context.Context, productID string, quantity int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	return s.applyGuarded(ctx, productID, func(p domain.Product) (domain.Product, error) {
		return domain.Confirm(p, quantity)
	})
}

func (s *inventoryService) applyGuarded(
	ctx context.Context,
	productID string,
	transition func(domain.Product) (domain.Product, error),
) (*domain.Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	product, err := s.productRepo.GetByIDTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	updated, err := transition(*product)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.UpdateGuarded(ctx, tx, updated, product.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &updated, nil
}

// HandleOrderCreated reserves stock for every item of a freshly created
// order. Items are independent: one failing item does not roll back the
// others, and every item produces exactly one inventory.result event.
func (s *inventoryService) HandleOrderCreated(ctx context.Context, event *generalDomain.OrderCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.HandleOrderCreated")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.Int("items_count", len(event.Items)),
	)

	for _, item := range event.Items {
		if err := s.reserveForOrder(ctx, event.OrderID, item.ProductID, item.Quantity); err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				s.logger,
				"Failed to process order item",
				zap.String("order_id", event.OrderID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *inventoryService) reserveForOrder(ctx context.Context, orderID, productID string, quantity int64) error {
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		_, err := s.Reserve(ctx, orderID, productID, quantity)
		if err == nil {
			return nil
		}

		if errors.Is(err, repository.ErrVersionConflict) {
			mylogger.Debug(
				ctx,
				s.logger,
				"Version conflict while reserving, retrying with fresh state",
				zap.String("product_id", productID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		var insufficientErr *domain.InsufficientStockError
		if errors.As(err, &insufficientErr) {
			// Reserve already wrote the FAILED result row.
			return nil
		}

		if errors.Is(err, repository.ErrProductNotFound) {
			return s.emitStandaloneResult(ctx, &generalDomain.InventoryResultEvent{
				OrderID:   orderID,
				ProductID: productID,
				Quantity:  quantity,
				Status:    generalDomain.ResultFailed,
				Reason:    fmt.Sprintf("Product %s not found", productID),
				Timestamp: time.Now().UTC(),
			})
		}

		return err
	}

	return s.emitStandaloneResult(ctx, &generalDomain.InventoryResultEvent{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    generalDomain.ResultFailed,
		Reason:    "Concurrent modification, reservation attempts exhausted",
		Timestamp: time.Now().UTC(),
	})
}

func (s *inventoryService) emitResult(ctx context.Context, tx pgx.Tx, event *generalDomain.InventoryResultEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory result: %w", err)
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, &outboxDomain.OutboxEvent{
		AggregateID:   event.OrderID,
		AggregateType: "Inventory",
		EventType:     generalDomain.TopicInventoryResult,
		Payload:       payload,
		Topic:         generalDomain.TopicInventoryResult,
	})
}

func (s *inventoryService) emitStandaloneResult(ctx context.Context, event *generalDomain.InventoryResultEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.emitResult(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *inventoryService) CreateProduct(ctx context.Context, product *domain.Product) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.CreateProduct")
	defer span.End()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	span.SetAttributes(
		attribute.String("sku", product.SKU),
	)

	return s.productRepo.Create(ctx, product)
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

func (s *inventoryService) AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.AdjustStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Int64("delta", delta),
	)

	return s.productRepo.AdjustStock(ctx, id, delta)
}
