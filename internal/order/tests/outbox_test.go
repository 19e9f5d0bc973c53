package tests

import (
	"errors"

	"github.com/orderflow-labs/orderflow/internal/order/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
)

func (s *IntegrationTestSuite) TestOutbox_ProcessBatchPublishesAndMarks() {
	s.seedProduct("p1", 100, 10)
	order := s.placeOrder("user-1", "key-1")

	published, err := s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, published)

	produced := s.Producer.Produced()
	s.Require().Len(produced, 1)
	s.Equal(generalDomain.TopicOrderCreated, produced[0].Topic)
	s.Equal(order.ID, produced[0].Key)

	// The relay injects the outbox row id so consumers can dedup.
	payload, ok := produced[0].Payload.(map[string]interface{})
	s.Require().True(ok)
	s.NotNil(payload["eventId"])
	s.Equal(order.ID, payload["orderId"])

	var publishedFlag bool
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx,
		`SELECT published FROM outbox WHERE aggregate_id = $1`, order.ID,
	).Scan(&publishedFlag))
	s.True(publishedFlag)

	// A second pass finds nothing; published rows never flip back.
	published, err = s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, published)
}

func (s *IntegrationTestSuite) TestOutbox_PublishFailureLeavesRowForRetry() {
	s.seedProduct("p1", 100, 10)
	order := s.placeOrder("user-1", "key-1")

	s.Producer.SetFailure(errors.New("broker unavailable"))

	published, err := s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, published)

	var publishedFlag bool
	var retryCount int64
	var lastError *string
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx,
		`SELECT published, retry_count, last_error FROM outbox WHERE aggregate_id = $1`, order.ID,
	).Scan(&publishedFlag, &retryCount, &lastError))

	s.False(publishedFlag)
	s.Equal(int64(1), retryCount)
	s.Require().NotNil(lastError)
	s.Contains(*lastError, "broker unavailable")

	// Once the broker recovers the same row goes out.
	s.Producer.SetFailure(nil)

	published, err = s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, published)
}

func (s *IntegrationTestSuite) TestOutbox_OrderStatusEventsFlowThroughRelay() {
	s.seedProduct("p1", 100, 10)
	order := s.placeOrder("user-1", "key-1")

	confirmed := "CONFIRMED"
	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, order.ID, service.StatusUpdate{Status: &confirmed})
	s.Require().NoError(err)

	published, err := s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(2, published)

	topics := make([]string, 0, 2)
	for _, msg := range s.Producer.Produced() {
		topics = append(topics, msg.Topic)
	}
	s.ElementsMatch(topics, []string{generalDomain.TopicOrderCreated, generalDomain.TopicOrderStatus})
}
