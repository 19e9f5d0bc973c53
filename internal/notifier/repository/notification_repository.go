package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/notifier/domain"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const backlogLimit = 50

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	CreateTx(ctx context.Context, tx pgx.Tx, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	SetRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type notificationRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewNotificationRepository(pool *pgxpool.Pool, logger *zap.Logger) NotificationRepository {
	return &notificationRepo{
		pool:   pool,
		tracer: otel.Tracer("notifier/notification_repo"),
		logger: logger,
	}
}

const notificationColumns = `id, user_id, order_id, type, title, message, data, read, created_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.OrderID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.Data,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

func (r *notificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.Create")
	defer span.End()

	return r.create(ctx, r.pool, notification)
}

// CreateTx lets a saga handler persist the notification inside its own
// transaction, so the status change and the notification commit together.
func (r *notificationRepo) CreateTx(ctx context.Context, tx pgx.Tx, notification *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.CreateTx")
	defer span.End()

	return r.create(ctx, tx, notification)
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *notificationRepo) create(ctx context.Context, q execer, notification *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, order_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := q.QueryRow(
		ctx,
		query,
		notification.ID,
		notification.UserID,
		notification.OrderID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Data,
	).Scan(&notification.CreatedAt)
	if err != nil {
		mylogger.Error(
			ctx,
			r.logger,
			"Error creating notification",
			zap.Error(err),
		)

		return fmt.Errorf("error creating notification: %w", err)
	}

	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.GetByID")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1`, notificationColumns)

	notification, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}

		return nil, fmt.Errorf("error getting notification: %w", err)
	}

	return notification, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
	)

	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT %d
	`, notificationColumns, backlogLimit)

	return r.list(ctx, query, userID)
}

// ListUnread returns the catch-up backlog in delivery order, oldest first.
func (r *notificationRepo) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.ListUnread")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
	)

	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE user_id = $1 AND read = FALSE
		ORDER BY created_at ASC
		LIMIT %d
	`, notificationColumns, backlogLimit)

	return r.list(ctx, query, userID)
}

func (r *notificationRepo) list(ctx context.Context, query, userID string) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}

		notifications = append(notifications, *notification)
	}

	return notifications, rows.Err()
}

func (r *notificationRepo) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.UnreadCount")
	defer span.End()

	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}

	return count, nil
}

func (r *notificationRepo) SetRead(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.SetRead")
	defer span.End()

	query := `UPDATE notifications SET read = TRUE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.MarkAllRead")
	defer span.End()

	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`

	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.Delete")
	defer span.End()

	query := `DELETE FROM notifications WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error deleting notification: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}
