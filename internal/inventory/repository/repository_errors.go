package repository

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSKUExists       = errors.New("product with this SKU already exists")
	ErrVersionConflict = errors.New("product version mismatch, concurrent modification detected")
)
