package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	TypeOrderCreated   NotificationType = "ORDER_CREATED"
	TypeOrderConfirmed NotificationType = "ORDER_CONFIRMED"
	TypeOrderFailed    NotificationType = "ORDER_FAILED"
	TypeStockReserved  NotificationType = "STOCK_RESERVED"
)

type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	OrderID   string           `db:"order_id" json:"orderId"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Data      json.RawMessage  `db:"data" json:"data,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

// TypeForStatus maps an order status pair onto a notification. Failure wins
// over everything, confirmation over reservation progress.
func TypeForStatus(orderID, status, inventoryStatus string) (NotificationType, string, string) {
	switch {
	case status == "FAILED":
		return TypeOrderFailed,
			"Order Failed",
			fmt.Sprintf("Your order %s could not be completed", orderID)
	case status == "CONFIRMED":
		return TypeOrderConfirmed,
			"Order Confirmed",
			fmt.Sprintf("Your order %s has been confirmed", orderID)
	case inventoryStatus == "RESERVED":
		return TypeStockReserved,
			"Stock Reserved",
			fmt.Sprintf("Stock has been reserved for order %s", orderID)
	default:
		return TypeOrderCreated,
			"Order Created",
			fmt.Sprintf("Your order %s has been placed", orderID)
	}
}
