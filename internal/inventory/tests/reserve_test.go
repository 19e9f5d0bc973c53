package tests

import (
	"sync"

	"github.com/orderflow-labs/orderflow/internal/inventory/domain"
	"github.com/orderflow-labs/orderflow/internal/inventory/repository"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
)

func (s *IntegrationTestSuite) TestReserve_Success() {
	s.seedProduct("p1", 10)

	product, err := s.InventoryService.Reserve(s.Ctx, "order-1", "p1", 6)
	s.Require().NoError(err)

	s.Equal(int64(10), product.Stock)
	s.Equal(int64(6), product.Reserved)
	s.Equal(int64(1), product.Version)

	s.Equal([]string{generalDomain.ResultSuccess}, s.outboxResults("order-1"))
}

func (s *IntegrationTestSuite) TestReserve_InsufficientStockEmitsFailedResult() {
	s.seedProduct("p1", 10)

	_, err := s.InventoryService.Reserve(s.Ctx, "order-1", "p1", 6)
	s.Require().NoError(err)

	_, err = s.InventoryService.Reserve(s.Ctx, "order-2", "p1", 6)

	var insufficientErr *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficientErr)
	s.Equal(int64(4), insufficientErr.Available)
	s.Equal(int64(6), insufficientErr.Requested)

	// The failed attempt must not touch the stock row.
	product, err := s.ProductRepo.GetByID(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(6), product.Reserved)
	s.Equal(int64(1), product.Version)

	s.Equal([]string{generalDomain.ResultFailed}, s.outboxResults("order-2"))
}

// Many concurrent reservations against the same row: the version guard must
// keep the sum of granted units within stock. Losers see ErrVersionConflict
// or insufficient stock, never oversell.
func (s *IntegrationTestSuite) TestReserve_ConcurrentNeverOversells() {
	s.seedProduct("p1", 10)

	const workers = 8

	var wg sync.WaitGroup
	granted := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.InventoryService.Reserve(s.Ctx, "order-c", "p1", 3); err == nil {
				granted <- 3
			}
		}(i)
	}

	wg.Wait()
	close(granted)

	var total int64
	for units := range granted {
		total += units
	}

	s.LessOrEqual(total, int64(10))

	product, err := s.ProductRepo.GetByID(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(total, product.Reserved)
	s.LessOrEqual(product.Reserved, product.Stock)
}

func (s *IntegrationTestSuite) TestReleaseAndConfirm_Lifecycle() {
	s.seedProduct("p1", 10)

	_, err := s.InventoryService.Reserve(s.Ctx, "order-1", "p1", 6)
	s.Require().NoError(err)

	released, err := s.InventoryService.Release(s.Ctx, "p1", 2)
	s.Require().NoError(err)
	s.Equal(int64(4), released.Reserved)
	s.Equal(int64(10), released.Stock)

	confirmed, err := s.InventoryService.Confirm(s.Ctx, "p1", 4)
	s.Require().NoError(err)
	s.Equal(int64(0), confirmed.Reserved)
	s.Equal(int64(6), confirmed.Stock)
}

func (s *IntegrationTestSuite) TestRelease_MoreThanReserved() {
	s.seedProduct("p1", 10)

	_, err := s.InventoryService.Release(s.Ctx, "p1", 1)
	s.Require().ErrorIs(err, domain.ErrExcessRelease)
}

func (s *IntegrationTestSuite) TestReserve_UnknownProduct() {
	_, err := s.InventoryService.Reserve(s.Ctx, "order-1", "ghost", 1)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
}

func (s *IntegrationTestSuite) TestHandleOrderCreated_EmitsOneResultPerItem() {
	s.seedProduct("p1", 10)
	s.seedProduct("p2", 1)

	err := s.InventoryService.HandleOrderCreated(s.Ctx, &generalDomain.OrderCreatedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Items: []generalDomain.OrderItemRef{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 5},
			{ProductID: "ghost", Quantity: 1},
		},
	})
	s.Require().NoError(err)

	statuses := s.outboxResults("order-1")
	s.Require().Len(statuses, 3)
	s.Equal(generalDomain.ResultSuccess, statuses[0])
	s.Equal(generalDomain.ResultFailed, statuses[1])
	s.Equal(generalDomain.ResultFailed, statuses[2])

	// Partial reservation holds: p1 stays reserved despite the failures.
	product, err := s.ProductRepo.GetByID(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(2), product.Reserved)
}

func (s *IntegrationTestSuite) TestCreateProduct_DuplicateSKU() {
	s.seedProduct("p1", 10)

	err := s.ProductRepo.Create(s.Ctx, &domain.Product{
		ID:   "p2",
		Name: "p2",
		SKU:  "sku-p1",
	})
	s.Require().ErrorIs(err, repository.ErrSKUExists)
}

func (s *IntegrationTestSuite) TestAdjustStock() {
	s.seedProduct("p1", 10)

	product, err := s.InventoryService.AdjustStock(s.Ctx, "p1", 5)
	s.Require().NoError(err)
	s.Equal(int64(15), product.Stock)

	product, err = s.InventoryService.AdjustStock(s.Ctx, "p1", -3)
	s.Require().NoError(err)
	s.Equal(int64(12), product.Stock)
}
