package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrExcessRelease   = errors.New("cannot release more than reserved")
	ErrInvalidConfirm  = errors.New("confirm exceeds stock or reserved")
)

type InsufficientStockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}
