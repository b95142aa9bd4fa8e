package domain

import "time"

// Product is a sellable item owned by the user that created it. Image holds
// the relative object-store path of the product image, empty when absent.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Price       float64   `gorm:"not null" json:"price"`
	Description string    `gorm:"type:text" json:"description"`
	Image       string    `gorm:"size:512" json:"image,omitempty"`
	CreatedBy   uint      `gorm:"not null;index:idx_products_created_by" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
