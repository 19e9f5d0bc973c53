package repository

import "errors"

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrProductNotFound         = errors.New("product not found")
	ErrProductInactive         = errors.New("product is not active")
)
