package domain

import "time"

type Product struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	Price         int64     `db:"price" json:"price"`
	OriginalPrice int64     `db:"original_price" json:"originalPrice"`
	Stock         int64     `db:"stock" json:"stock"`
	Reserved      int64     `db:"reserved" json:"reserved"`
	SKU           string    `db:"sku" json:"sku"`
	Category      string    `db:"category" json:"category"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	Version       int64     `db:"version" json:"version"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

func (p Product) Available() int64 {
	return p.Stock - p.Reserved
}

// Reserve, Release and Confirm are pure transitions over a product snapshot.
// The storage adapter applies the returned value with a version-guarded
// update; a concurrent writer surfaces there as ErrVersionConflict, never
// here. Per-unit lifecycle: Free → Reserved → {Sold | Free}.

func Reserve(p Product, quantity int64) (Product, error) {
	if quantity <= 0 {
		return p, ErrInvalidQuantity
	}

	if p.Available() < quantity {
		return p, &InsufficientStockError{
			ProductID: p.ID,
			Available: p.Available(),
			Requested: quantity,
		}
	}

	p.Reserved += quantity
	p.Version++
	return p, nil
}

func Release(p Product, quantity int64) (Product, error) {
	if quantity <= 0 {
		return p, ErrInvalidQuantity
	}

	if p.Reserved < quantity {
		return p, ErrExcessRelease
	}

	p.Reserved -= quantity
	p.Version++
	return p, nil
}

func Confirm(p Product, quantity int64) (Product, error) {
	if quantity <= 0 {
		return p, ErrInvalidQuantity
	}

	if p.Reserved < quantity || p.Stock < quantity {
		return p, ErrInvalidConfirm
	}

	p.Stock -= quantity
	p.Reserved -= quantity
	p.Version++
	return p, nil
}
