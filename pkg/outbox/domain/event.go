package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent is written in the same transaction as the domain change it
// announces. Published flips false→true exactly once and never reverts.
type OutboxEvent struct {
	ID            int64           `db:"id"`
	AggregateID   string          `db:"aggregate_id"`
	AggregateType string          `db:"aggregate_type"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Topic         string          `db:"topic"`
	Published     bool            `db:"published"`
	PublishedAt   *time.Time      `db:"published_at"`
	RetryCount    int64           `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	CreatedAt     time.Time       `db:"created_at"`
}
