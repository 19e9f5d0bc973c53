package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/order/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProductSnapshot is the slice of the catalog an order needs at intake time.
type ProductSnapshot struct {
	ID       string
	Price    int64
	IsActive bool
}

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	SetItemReservation(ctx context.Context, tx pgx.Tx, orderID, productID, reservationID string) error
	GetProductSnapshot(ctx context.Context, tx pgx.Tx, productID string) (*ProductSnapshot, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		tracer: otel.Tracer("order/order_repo"),
		logger: logger,
	}
}

const orderColumns = `id, user_id, total_amount, status, inventory_status, payment_status,
	idempotency_key, failure_reason, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.Status,
		&o.InventoryStatus,
		&o.PaymentStatus,
		&o.IdempotencyKey,
		&o.FailureReason,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("user_id", order.UserID),
	)

	query := `
		INSERT INTO orders (id, user_id, total_amount, status, inventory_status, payment_status, idempotency_key, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		order.Status,
		order.InventoryStatus,
		order.PaymentStatus,
		order.IdempotencyKey,
		order.Version,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating order",
			zap.Error(err),
		)

		return fmt.Errorf("error creating order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		_, err := tx.Exec(ctx, itemQuery, item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("error creating order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
	)

	return r.getByID(ctx, r.pool, id)
}

func (r *orderRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByIDTx")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
	)

	return r.getByID(ctx, tx, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepo) getByID(ctx context.Context, q querier, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		return nil, fmt.Errorf("error getting order: %w", err)
	}

	items, err := r.loadItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}

	order.Items = items
	return order, nil
}

func (r *orderRepo) loadItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, reservation_id
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("error getting order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.ReservationID,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *orderRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByIdempotencyKey")
	defer span.End()

	return r.findByKey(ctx, tx, userID, key)
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByIdempotencyKey")
	defer span.End()

	return r.findByKey(ctx, r.pool, userID, key)
}

func (r *orderRepo) findByKey(ctx context.Context, q querier, userID, key string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 AND idempotency_key = $2`, orderColumns)

	order, err := scanOrder(q.QueryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		return nil, fmt.Errorf("error getting order by idempotency key: %w", err)
	}

	items, err := r.loadItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}

	order.Items = items
	return order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("status", order.Status),
	)

	query := `
		UPDATE orders
		SET status = $2, inventory_status = $3, payment_status = $4,
			failure_reason = $5, version = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		order.ID,
		order.Status,
		order.InventoryStatus,
		order.PaymentStatus,
		order.FailureReason,
		order.Version,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error updating order status",
			zap.Error(err),
		)

		return fmt.Errorf("error updating order status: %w", err)
	}

	return nil
}

func (r *orderRepo) SetItemReservation(ctx context.Context, tx pgx.Tx, orderID, productID, reservationID string) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.SetItemReservation")
	defer span.End()

	query := `
		UPDATE order_items
		SET reservation_id = $3
		WHERE order_id = $1 AND product_id = $2
	`

	_, err := tx.Exec(ctx, query, orderID, productID, reservationID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error setting item reservation: %w", err)
	}

	return nil
}

func (r *orderRepo) GetProductSnapshot(ctx context.Context, tx pgx.Tx, productID string) (*ProductSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetProductSnapshot")
	defer span.End()

	query := `SELECT id, price, is_active FROM products WHERE id = $1`

	var snapshot ProductSnapshot
	err := tx.QueryRow(ctx, query, productID).Scan(&snapshot.ID, &snapshot.Price, &snapshot.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("error getting product snapshot: %w", err)
	}

	return &snapshot, nil
}
