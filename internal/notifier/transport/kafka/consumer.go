package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/internal/notifier/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/kafka"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

const ConsumerGroupID = "notifier-service-group"

// NewOrderStatusConsumer turns order status changes into user notifications.
func NewOrderStatusConsumer(
	brokers []string,
	pool *pgxpool.Pool,
	notifierService service.NotifierService,
	logger *zap.Logger,
) *kafka.ConsumerGroup {
	return kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{generalDomain.TopicOrderStatus},
		NewOrderStatusHandler(pool, notifierService, logger),
		logger,
	)
}

func NewOrderStatusHandler(
	pool *pgxpool.Pool,
	notifierService service.NotifierService,
	logger *zap.Logger,
) kafka.HandlerFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) kafka.Outcome {
		var event generalDomain.OrderStatusEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return kafka.Dropped(fmt.Errorf("unmarshal order.status: %w", err))
		}

		mylogger.Info(ctx, logger, "order.status received",
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.String("inventory_status", event.InventoryStatus),
		)

		if event.EventID == 0 {
			if err := notifierService.HandleOrderStatus(ctx, &event); err != nil {
				return kafka.Dropped(err)
			}
			return kafka.Handled()
		}

		err := utils.ProcessWithDeduplication(ctx, pool, logger, ConsumerGroupID, event.EventID, func() error {
			return notifierService.HandleOrderStatus(ctx, &event)
		})
		if err != nil {
			return kafka.Dropped(err)
		}

		return kafka.Handled()
	}
}
