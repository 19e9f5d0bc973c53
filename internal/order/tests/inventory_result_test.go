package tests

import (
	"time"

	"github.com/orderflow-labs/orderflow/internal/order/domain"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
)

func (s *IntegrationTestSuite) placeOrder(userID, key string, productIDs ...string) *domain.Order {
	if len(productIDs) == 0 {
		productIDs = []string{"p1"}
	}

	items := make([]service.OrderItemInput, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, service.OrderItemInput{ProductID: id, Quantity: 2})
	}

	order, _, err := s.OrderService.CreateOrder(s.Ctx, userID, key, service.CreateOrderInput{Items: items})
	s.Require().NoError(err)
	return order
}

func (s *IntegrationTestSuite) inventoryResult(orderID, productID, status, reservationID, reason string) error {
	return s.OrderService.HandleInventoryResult(s.Ctx, &generalDomain.InventoryResultEvent{
		OrderID:       orderID,
		ProductID:     productID,
		Quantity:      2,
		Status:        status,
		ReservationID: reservationID,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	})
}

func (s *IntegrationTestSuite) countOrderStatusEvents(orderID string) int {
	var count int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND topic = $2`,
		orderID, generalDomain.TopicOrderStatus,
	).Scan(&count))
	return count
}

func (s *IntegrationTestSuite) TestHandleInventoryResult_SuccessReservesOrder() {
	s.seedProduct("p1", 100, 10)
	order := s.placeOrder("user-1", "key-1")

	s.Require().NoError(s.inventoryResult(order.ID, "p1", generalDomain.ResultSuccess, "res-123", ""))

	updated, err := s.OrderService.GetOrder(s.Ctx, order.ID, "user-1")
	s.Require().NoError(err)

	s.Equal(domain.StatusPending, updated.Status)
	s.Equal(domain.InventoryReserved, updated.InventoryStatus)
	s.Equal(order.Version+1, updated.Version)
	s.Require().Len(updated.Items, 1)
	s.Require().NotNil(updated.Items[0].ReservationID)
	s.Equal("res-123", *updated.Items[0].ReservationID)

	// Reservation outcomes notify through the stored notification, not
	// through a second order.status event.
	s.Equal(0, s.countOrderStatusEvents(order.ID))
}

func (s *IntegrationTestSuite) TestHandleInventoryResult_FailureFailsOrderAndNotifies() {
	s.seedProduct("p1", 100, 10)
	order := s.placeOrder("user-1", "key-1")

	s.Require().NoError(s.inventoryResult(order.ID, "p1", generalDomain.ResultFailed, "", "Insufficient stock"))

	updated, err := s.OrderService.GetOrder(s.Ctx, order.ID, "user-1")
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, updated.Status)
	s.Equal(domain.InventoryFailed, updated.InventoryStatus)
	s.Require().NotNil(updated.FailureReason)
	s.Equal("Insufficient stock", *updated.FailureReason)

	// The failure notification commits with the status change and carries
	// the order it settles.
	var notificationType, notificationUser, notificationOrder string
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx,
		`SELECT type, user_id, order_id FROM notifications`,
	).Scan(&notificationType, &notificationUser, &notificationOrder))
	s.Equal("ORDER_FAILED", notificationType)
	s.Equal("user-1", notificationUser)
	s.Equal(order.ID, notificationOrder)

	s.Equal(0, s.countOrderStatusEvents(order.ID))
}

func (s *IntegrationTestSuite) TestHandleInventoryResult_MultiItemFailureNotifiesOnce() {
	s.seedProduct("p1", 100, 10)
	s.seedProduct("p2", 200, 10)
	order := s.placeOrder("user-1", "key-1", "p1", "p2")

	s.Require().NoError(s.inventoryResult(order.ID, "p1", generalDomain.ResultFailed, "", "Insufficient stock"))
	s.Require().NoError(s.inventoryResult(order.ID, "p2", generalDomain.ResultFailed, "", "Insufficient stock"))

	var notifications int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM notifications WHERE order_id = $1 AND type = 'ORDER_FAILED'`,
		order.ID,
	).Scan(&notifications))
	s.Equal(1, notifications)

	// The second result leaves the settled order untouched.
	updated, err := s.OrderService.GetOrder(s.Ctx, order.ID, "user-1")
	s.Require().NoError(err)
	s.Equal(order.Version+1, updated.Version)
}

func (s *IntegrationTestSuite) TestHandleInventoryResult_SuccessAfterFailureKeepsOrderFailed() {
	s.seedProduct("p1", 100, 10)
	s.seedProduct("p2", 200, 10)
	order := s.placeOrder("user-1", "key-1", "p1", "p2")

	s.Require().NoError(s.inventoryResult(order.ID, "p1", generalDomain.ResultFailed, "", "Insufficient stock"))
	s.Require().NoError(s.inventoryResult(order.ID, "p2", generalDomain.ResultSuccess, "res-456", ""))

	updated, err := s.OrderService.GetOrder(s.Ctx, order.ID, "user-1")
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, updated.Status)
	s.Equal(domain.InventoryFailed, updated.InventoryStatus)

	// The late reservation is still recorded so it can be released.
	for _, item := range updated.Items {
		if item.ProductID == "p2" {
			s.Require().NotNil(item.ReservationID)
			s.Equal("res-456", *item.ReservationID)
		}
	}
}

func (s *IntegrationTestSuite) TestHandleInventoryResult_UnknownOrder() {
	err := s.OrderService.HandleInventoryResult(s.Ctx, &generalDomain.InventoryResultEvent{
		OrderID: "ghost",
		Status:  generalDomain.ResultSuccess,
	})
	s.Require().Error(err)
}
