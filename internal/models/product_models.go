package models

import "time"

// Product represents a sellable item in the authoritative catalog.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name" binding:"required"`
	SKU       string    `json:"sku" db:"sku" binding:"required"`
	Category  *string   `json:"category,omitempty" db:"category"`
	Size      *string   `json:"size,omitempty" db:"size"`
	Color     *string   `json:"color,omitempty" db:"color"`
	Price     float64   `json:"price" db:"price" binding:"required,gt=0"`
	Cost      *float64  `json:"cost,omitempty" db:"cost"`
	ImageURL  *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductStock is the authoritative stock row for a product.
// One row per product; quantity never goes below zero.
type ProductStock struct {
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StockSnapshot maps product IDs to their authoritative stock quantity.
// Used by clients for full cache refreshes, not for incremental diffing.
type StockSnapshot map[int64]int
