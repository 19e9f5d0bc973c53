package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderflow-labs/orderflow/pkg/utils"
)

func NewPostgresDB(url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// All three services share one schema; pool sizing is tuned per
	// deployment through the environment.
	config.MaxConns = int32(utils.ParseIntWithFallback("PG_MAX_CONNS", 10))
	config.MinConns = int32(utils.ParseIntWithFallback("PG_MIN_CONNS", 2))
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Postgres pool ready, max %d connections ✅", config.MaxConns)
	return pool, nil
}
