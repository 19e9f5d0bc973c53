package tests

import (
	"github.com/orderflow-labs/orderflow/internal/order/domain"
	"github.com/orderflow-labs/orderflow/internal/order/repository"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
)

func (s *IntegrationTestSuite) TestCreateOrder_WritesOrderAndOutboxRow() {
	s.seedProduct("p1", 5350, 10)

	order, replayed, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "p1", Quantity: 2}},
	})
	s.Require().NoError(err)
	s.Require().False(replayed)

	s.Equal(domain.StatusPending, order.Status)
	s.Equal(domain.InventoryPending, order.InventoryStatus)
	s.Equal(int64(10700), order.TotalAmount)
	s.Require().Len(order.Items, 1)
	s.Equal(int64(5350), order.Items[0].UnitPrice)

	var topic string
	var published bool
	err = s.DbPool.QueryRow(s.Ctx,
		`SELECT topic, published FROM outbox WHERE aggregate_id = $1`, order.ID,
	).Scan(&topic, &published)
	s.Require().NoError(err)
	s.Equal(generalDomain.TopicOrderCreated, topic)
	s.False(published)
}

func (s *IntegrationTestSuite) TestCreateOrder_ReplaySameKey() {
	s.seedProduct("p1", 100, 10)

	input := service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "p1", Quantity: 1}},
	}

	first, replayed, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", input)
	s.Require().NoError(err)
	s.Require().False(replayed)

	second, replayed, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", input)
	s.Require().NoError(err)
	s.True(replayed)
	s.Equal(first.ID, second.ID)

	// Replay must not write a second order or a second outbox row.
	var orderCount, outboxCount int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orderCount))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox`).Scan(&outboxCount))
	s.Equal(1, orderCount)
	s.Equal(1, outboxCount)
}

func (s *IntegrationTestSuite) TestCreateOrder_SameKeyDifferentUsers() {
	s.seedProduct("p1", 100, 10)

	input := service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "p1", Quantity: 1}},
	}

	first, _, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "shared-key", input)
	s.Require().NoError(err)

	second, replayed, err := s.OrderService.CreateOrder(s.Ctx, "user-2", "shared-key", input)
	s.Require().NoError(err)
	s.False(replayed)
	s.NotEqual(first.ID, second.ID)
}

func (s *IntegrationTestSuite) TestCreateOrder_UnknownProduct() {
	_, _, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "ghost", Quantity: 1}},
	})
	s.Require().ErrorIs(err, repository.ErrProductNotFound)

	var orderCount int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orderCount))
	s.Equal(0, orderCount)
}

func (s *IntegrationTestSuite) TestCreateOrder_InactiveProduct() {
	s.seedProduct("p1", 100, 10)
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE products SET is_active = FALSE WHERE id = 'p1'`)
	s.Require().NoError(err)

	_, _, createErr := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "p1", Quantity: 1}},
	})
	s.Require().ErrorIs(createErr, repository.ErrProductInactive)
}

func (s *IntegrationTestSuite) TestGetOrder_ForeignOrderIsForbidden() {
	s.seedProduct("p1", 100, 10)

	order, _, err := s.OrderService.CreateOrder(s.Ctx, "user-1", "key-1", service.CreateOrderInput{
		Items: []service.OrderItemInput{{ProductID: "p1", Quantity: 1}},
	})
	s.Require().NoError(err)

	_, err = s.OrderService.GetOrder(s.Ctx, order.ID, "user-2")
	s.Require().ErrorIs(err, service.ErrForbidden)

	got, err := s.OrderService.GetOrder(s.Ctx, order.ID, "user-1")
	s.Require().NoError(err)
	s.Equal(order.ID, got.ID)
}
