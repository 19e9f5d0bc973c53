package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/inventory/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/kafka"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

const ConsumerGroupID = "inventory-service-group"

// NewOrderCreatedConsumer reserves stock for freshly placed orders.
func NewOrderCreatedConsumer(
	brokers []string,
	pool *pgxpool.Pool,
	inventoryService service.InventoryService,
	logger *zap.Logger,
) *kafka.ConsumerGroup {
	return kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{generalDomain.TopicOrderCreated},
		NewOrderCreatedHandler(pool, inventoryService, logger),
		logger,
	)
}

func NewOrderCreatedHandler(
	pool *pgxpool.Pool,
	inventoryService service.InventoryService,
	logger *zap.Logger,
) kafka.HandlerFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) kafka.Outcome {
		var event generalDomain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return kafka.Dropped(fmt.Errorf("unmarshal order.created: %w", err))
		}

		mylogger.Info(ctx, logger, "order.created received",
			zap.String("order_id", event.OrderID),
			zap.Int("items", len(event.Items)),
		)

		// Events that bypassed the outbox carry no id; process them
		// without the dedup guard.
		if event.EventID == 0 {
			if err := inventoryService.HandleOrderCreated(ctx, &event); err != nil {
				return kafka.Dropped(err)
			}
			return kafka.Handled()
		}

		err := utils.ProcessWithDeduplication(ctx, pool, logger, ConsumerGroupID, event.EventID, func() error {
			return inventoryService.HandleOrderCreated(ctx, &event)
		})
		if err != nil {
			return kafka.Dropped(err)
		}

		return kafka.Handled()
	}
}
