package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"github.com/orderflow-labs/orderflow/pkg/outbox/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
	ListRecent(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, message interface{}) error
}

// OutboxProcessor drives unpublished outbox rows onto the bus. Delivery is
// at-least-once: a row is only marked published after the producer reported
// success, so a crash in between causes a duplicate publish on the next tick.
type OutboxProcessor struct {
	pool          *pgxpool.Pool
	repo          OutboxRepository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer

	publishedTotal *prometheus.CounterVec
	failedTotal    *prometheus.CounterVec
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
	reg prometheus.Registerer,
	interval time.Duration,
	batchSize int,
) *OutboxProcessor {
	p := &OutboxProcessor{
		pool:          pool,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     batchSize,
		interval:      interval,
		tracer:        otel.Tracer("outbox-worker"),
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events successfully published to the bus.",
		}, []string{"topic"}),
		failedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and were left for retry.",
		}, []string{"topic"}),
	}

	if reg != nil {
		reg.MustRegister(p.publishedTotal, p.failedTotal)
	}

	return p
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		p.logger,
		"Starting outbox processor",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(
				ctx,
				p.logger,
				"Outbox processor stopping",
			)

			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessBatch runs one relay tick and returns how many events were
// published. It also backs the manual publish endpoint and lets tests drive
// the relay without waiting on the ticker.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			p.logger,
			"outbox worker failed to begin transaction",
			zap.Error(err),
		)

		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Processing outbox events",
		zap.Int("count", len(events)),
	)

	published := 0
	for _, event := range events {
		var payloadMap map[string]any
		if err := json.Unmarshal(event.Payload, &payloadMap); err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"outbox worker unmarshal event payload failed",
				zap.Int64("id", event.ID),
				zap.Error(err),
			)

			_ = p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error())
			p.failedTotal.WithLabelValues(event.Topic).Inc()
			continue
		}

		// Consumers use the outbox id to deduplicate redeliveries.
		payloadMap["eventId"] = event.ID

		err = p.kafkaProducer.ProduceMessage(ctx, event.Topic, event.AggregateID, payloadMap)
		if err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"outbox worker produce message failed",
				zap.Int64("id", event.ID),
				zap.Int64("retry_count", event.RetryCount),
				zap.Error(err),
			)

			p.failedTotal.WithLabelValues(event.Topic).Inc()

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"outbox worker mark event failed failed",
					zap.Int64("id", event.ID),
					zap.Error(dbErr),
				)
			}
		} else {
			if dbErr := p.repo.MarkEventPublished(ctx, tx, event.ID); dbErr != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"outbox worker mark event published failed",
					zap.Int64("id", event.ID),
					zap.Error(dbErr),
				)

				return published, dbErr
			}

			p.publishedTotal.WithLabelValues(event.Topic).Inc()
			published++

			mylogger.Debug(
				ctx,
				p.logger,
				"outbox worker event published successfully",
				zap.Int64("id", event.ID),
			)
		}
	}

	return published, tx.Commit(ctx)
}
