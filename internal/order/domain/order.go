package domain

import "time"

// Order status lifecycle: PENDING → CONFIRMED | FAILED; CANCELLED is reserved
// for operator action. Inventory status tracks the saga leg independently.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

const (
	InventoryPending   = "PENDING"
	InventoryReserved  = "RESERVED"
	InventoryConfirmed = "CONFIRMED"
	InventoryFailed    = "FAILED"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

type OrderItem struct {
	ID            string  `db:"id" json:"id"`
	OrderID       string  `db:"order_id" json:"orderId"`
	ProductID     string  `db:"product_id" json:"productId"`
	Quantity      int64   `db:"quantity" json:"quantity"`
	UnitPrice     int64   `db:"unit_price" json:"unitPrice"`
	ReservationID *string `db:"reservation_id" json:"reservationId,omitempty"`
}

type Order struct {
	ID              string      `db:"id" json:"id"`
	UserID          string      `db:"user_id" json:"userId"`
	Items           []OrderItem `db:"-" json:"items"`
	TotalAmount     int64       `db:"total_amount" json:"totalAmount"`
	Status          string      `db:"status" json:"status"`
	InventoryStatus string      `db:"inventory_status" json:"inventoryStatus"`
	PaymentStatus   string      `db:"payment_status" json:"paymentStatus"`
	IdempotencyKey  string      `db:"idempotency_key" json:"-"`
	FailureReason   *string     `db:"failure_reason" json:"failureReason,omitempty"`
	Version         int64       `db:"version" json:"version"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

// CalculateTotal sums quantity times unit price over all items. The total is
// derived server side from catalog prices, never taken from the request.
func CalculateTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}
