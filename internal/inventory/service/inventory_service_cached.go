package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orderflow-labs/orderflow/internal/inventory/domain"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// cachedInventoryService caches product reads in redis. The cache path runs
// behind a circuit breaker so a degraded redis falls through to Postgres
// instead of slowing every read.
type cachedInventoryService struct {
	next        InventoryService
	redisClient *redis.Client
	cb          *gobreaker.CircuitBreaker
	cacheTTL    time.Duration
}

func NewCachedInventoryService(next InventoryService, redisClient *redis.Client, logger *zap.Logger) InventoryService {
	return &cachedInventoryService{
		next:        next,
		redisClient: redisClient,
		cb:          utils.NewBreaker("ProductCache", logger),
		cacheTTL:    10 * time.Minute,
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (s *cachedInventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	val, err := utils.ExecuteWithBreaker(s.cb, func() (string, error) {
		return s.redisClient.Get(ctx, cacheKey(id)).Result()
	})
	if err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(val), &product); err == nil {
			return &product, nil
		}
	}

	product, err := s.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		_, _ = utils.ExecuteWithBreaker(s.cb, func() (string, error) {
			return s.redisClient.Set(ctx, cacheKey(id), data, s.cacheTTL).Result()
		})
	}

	return product, nil
}

func (s *cachedInventoryService) invalidate(ctx context.Context, id string) {
	_, _ = utils.ExecuteWithBreaker(s.cb, func() (int64, error) {
		return s.redisClient.Del(ctx, cacheKey(id)).Result()
	})
}

func (s *cachedInventoryService) Reserve(ctx context.Context, orderID, productID string, quantity int64) (*domain.Product, error) {
	product, err := s.next.Reserve(ctx, orderID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productID)
	return product, nil
}

func (s *cachedInventoryService) Release(ctx context.Context, productID string, quantity int64) (*domain.Product, error) {
	product, err := s.next.Release(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productID)
	return product, nil
}

func (s *cachedInventoryService) Confirm(ctx context.Context, productID string, quantity int64) (*domain.Product, error) {
	product, err := s.next.Confirm(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productID)
	return product, nil
}

func (s *cachedInventoryService) AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error) {
	product, err := s.next.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return product, nil
}

func (s *cachedInventoryService) HandleOrderCreated(ctx context.Context, event *generalDomain.OrderCreatedEvent) error {
	if err := s.next.HandleOrderCreated(ctx, event); err != nil {
		return err
	}

	for _, item := range event.Items {
		s.invalidate(ctx, item.ProductID)
	}

	return nil
}

func (s *cachedInventoryService) CreateProduct(ctx context.Context, product *domain.Product) error {
	return s.next.CreateProduct(ctx, product)
}
