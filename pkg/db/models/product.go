package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a storefront listing with its on-hand stock.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	PriceYen    int       `gorm:"column:price_yen;not null"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	ImageURL    *string   `gorm:"column:image_url"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the historical table name.
func (Product) TableName() string {
	return "products"
}
