package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/inventory/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Product, error)
	UpdateGuarded(ctx context.Context, tx pgx.Tx, product domain.Product, expectedVersion int64) error
	AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error)
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		tracer: otel.Tracer("inventory/product_repo"),
		logger: logger,
	}
}

const productColumns = `id, name, description, price, original_price, stock, reserved,
	sku, category, is_active, version, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.OriginalPrice,
		&p.Stock,
		&p.Reserved,
		&p.SKU,
		&p.Category,
		&p.IsActive,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("sku", product.SKU),
	)

	query := `
		INSERT INTO products (id, name, description, price, original_price, stock, sku, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.OriginalPrice,
		product.Stock,
		product.SKU,
		product.Category,
		product.IsActive,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			return ErrSKUExists
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.Error(err),
		)

		return fmt.Errorf("error creating product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting product",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return p, nil
}

func (r *productRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByIDTx")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return p, nil
}

// UpdateGuarded writes the stock counters computed by a pure domain
// transition, but only if nobody moved the version since the snapshot was
// read. Zero matched rows means a concurrent writer won.
func (r *productRepo) UpdateGuarded(ctx context.Context, tx pgx.Tx, product domain.Product, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.UpdateGuarded")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", product.ID),
		attribute.Int64("expected_version", expectedVersion),
	)

	query := `
		UPDATE products
		SET stock = $2, reserved = $3, version = $4, updated_at = NOW()
		WHERE id = $1 AND version = $5
	`

	commandTag, err := tx.Exec(
		ctx,
		query,
		product.ID,
		product.Stock,
		product.Reserved,
		product.Version,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error updating product stock",
			zap.String("id", product.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error updating product stock: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	return nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.AdjustStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Int64("delta", delta),
	)

	query := `
		UPDATE products
		SET stock = stock + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error adjusting stock",
			zap.String("id", id),
			zap.Int64("delta", delta),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error adjusting stock: %w", err)
	}

	return p, nil
}
