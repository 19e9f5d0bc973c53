package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/kafka"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

const ConsumerGroupID = "order-service-group"

// NewInventoryResultConsumer feeds reservation outcomes back into the order
// saga.
func NewInventoryResultConsumer(
	brokers []string,
	pool *pgxpool.Pool,
	orderService service.OrderService,
	logger *zap.Logger,
) *kafka.ConsumerGroup {
	return kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{generalDomain.TopicInventoryResult},
		NewInventoryResultHandler(pool, orderService, logger),
		logger,
	)
}

func NewInventoryResultHandler(
	pool *pgxpool.Pool,
	orderService service.OrderService,
	logger *zap.Logger,
) kafka.HandlerFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) kafka.Outcome {
		var event generalDomain.InventoryResultEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return kafka.Dropped(fmt.Errorf("unmarshal inventory.result: %w", err))
		}

		mylogger.Info(ctx, logger, "inventory.result received",
			zap.String("order_id", event.OrderID),
			zap.String("product_id", event.ProductID),
			zap.String("status", event.Status),
		)

		if event.EventID == 0 {
			if err := orderService.HandleInventoryResult(ctx, &event); err != nil {
				return kafka.Dropped(err)
			}
			return kafka.Handled()
		}

		err := utils.ProcessWithDeduplication(ctx, pool, logger, ConsumerGroupID, event.EventID, func() error {
			return orderService.HandleInventoryResult(ctx, &event)
		})
		if err != nil {
			return kafka.Dropped(err)
		}

		return kafka.Handled()
	}
}
