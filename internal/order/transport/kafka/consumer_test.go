package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	orderDomain "github.com/orderflow-labs/orderflow/internal/order/domain"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderService struct {
	handled []*generalDomain.InventoryResultEvent
	err     error
}

func (f *fakeOrderService) CreateOrder(context.Context, string, string, service.CreateOrderInput) (*orderDomain.Order, bool, error) {
	panic("not used")
}

func (f *fakeOrderService) GetOrder(context.Context, string, string) (*orderDomain.Order, error) {
	panic("not used")
}

func (f *fakeOrderService) UpdateOrderStatus(context.Context, string, service.StatusUpdate) (*orderDomain.Order, error) {
	panic("not used")
}

func (f *fakeOrderService) HandleInventoryResult(_ context.Context, event *generalDomain.InventoryResultEvent) error {
	f.handled = append(f.handled, event)
	return f.err
}

func message(t *testing.T, event *generalDomain.InventoryResultEvent) *sarama.ConsumerMessage {
	t.Helper()

	value, err := json.Marshal(event)
	require.NoError(t, err)

	return &sarama.ConsumerMessage{
		Topic: generalDomain.TopicInventoryResult,
		Value: value,
		Key:   []byte(event.OrderID),
	}
}

func TestInventoryResultHandler_MalformedPayloadIsDropped(t *testing.T) {
	svc := &fakeOrderService{}
	handler := NewInventoryResultHandler(nil, svc, zap.NewNop())

	outcome := handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})

	assert.Equal(t, kafka.StatusDropped, outcome.Status)
	assert.Error(t, outcome.Err)
	assert.Empty(t, svc.handled)
}

func TestInventoryResultHandler_HandlesEvent(t *testing.T) {
	svc := &fakeOrderService{}
	handler := NewInventoryResultHandler(nil, svc, zap.NewNop())

	outcome := handler(context.Background(), message(t, &generalDomain.InventoryResultEvent{
		OrderID:   "order-1",
		ProductID: "p1",
		Quantity:  2,
		Status:    generalDomain.ResultSuccess,
	}))

	assert.Equal(t, kafka.StatusHandled, outcome.Status)
	require.Len(t, svc.handled, 1)
	assert.Equal(t, "order-1", svc.handled[0].OrderID)
}

func TestInventoryResultHandler_ServiceFailureIsDropped(t *testing.T) {
	svc := &fakeOrderService{err: errors.New("boom")}
	handler := NewInventoryResultHandler(nil, svc, zap.NewNop())

	outcome := handler(context.Background(), message(t, &generalDomain.InventoryResultEvent{
		OrderID: "order-1",
		Status:  generalDomain.ResultFailed,
	}))

	assert.Equal(t, kafka.StatusDropped, outcome.Status)
	assert.Error(t, outcome.Err)
}
