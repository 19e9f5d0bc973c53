package domain

import "time"

// Topics carry one event shape each; ordering holds only among events sharing
// a key (the aggregate id) on the same topic.
const (
	TopicOrderCreated    = "order.created"
	TopicInventoryResult = "inventory.result"
	TopicOrderStatus     = "order.status"
)

const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

type OrderItemRef struct {
	ProductID     string `json:"productId"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	ReservationID string `json:"reservationId,omitempty"`
}

type OrderCreatedEvent struct {
	EventID     int64          `json:"eventId,omitempty"`
	OrderID     string         `json:"orderId"`
	UserID      string         `json:"userId"`
	Items       []OrderItemRef `json:"items"`
	TotalAmount int64          `json:"totalAmount"`
	Timestamp   time.Time      `json:"timestamp"`
}

type InventoryResultEvent struct {
	EventID       int64     `json:"eventId,omitempty"`
	OrderID       string    `json:"orderId"`
	ProductID     string    `json:"productId"`
	Quantity      int64     `json:"quantity"`
	Status        string    `json:"status"`
	ReservationID string    `json:"reservationId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type OrderStatusEvent struct {
	EventID         int64     `json:"eventId,omitempty"`
	OrderID         string    `json:"orderId"`
	UserID          string    `json:"userId"`
	Status          string    `json:"status"`
	InventoryStatus string    `json:"inventoryStatus"`
	Timestamp       time.Time `json:"timestamp"`
}
