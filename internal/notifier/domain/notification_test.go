package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeForStatus(t *testing.T) {
	tests := []struct {
		name            string
		status          string
		inventoryStatus string
		want            NotificationType
	}{
		{"failed order wins", "FAILED", "FAILED", TypeOrderFailed},
		{"failed order wins over reserved", "FAILED", "RESERVED", TypeOrderFailed},
		{"confirmed order", "CONFIRMED", "CONFIRMED", TypeOrderConfirmed},
		{"confirmed wins over reserved", "CONFIRMED", "RESERVED", TypeOrderConfirmed},
		{"pending with reservation", "PENDING", "RESERVED", TypeStockReserved},
		{"fresh order", "PENDING", "PENDING", TypeOrderCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, title, message := TypeForStatus("order-1", tt.status, tt.inventoryStatus)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, title)
			assert.Contains(t, message, "order-1")
		})
	}
}
