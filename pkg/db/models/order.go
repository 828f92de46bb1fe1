package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/susplants/shop-backend/pkg/enums"
)

// Order represents one cart line item persisted at checkout. Rows created in
// the same checkout share an OrderPrefix and settle together.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	OrderPrefix string    `gorm:"column:order_prefix;not null;index:idx_orders_order_prefix"`

	CustomerName  string  `gorm:"column:customer_name;not null"`
	CustomerEmail string  `gorm:"column:customer_email;not null"`
	CustomerPhone *string `gorm:"column:customer_phone"`
	PostalCode    string  `gorm:"column:postal_code;not null"`
	Address       string  `gorm:"column:address;not null"`
	Notes         *string `gorm:"column:notes"`

	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceYen   int       `gorm:"column:unit_price_yen;not null"`
	ShippingFeeYen int       `gorm:"column:shipping_fee_yen;not null;default:0"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`

	SquareOrderID       *string `gorm:"column:square_order_id"`
	SquarePaymentID     *string `gorm:"column:square_payment_id"`
	SquarePaymentLinkID *string `gorm:"column:square_payment_link_id"`
	RefundID            *string `gorm:"column:refund_id"`

	PaymentDueDate *time.Time `gorm:"column:payment_due_date"`
	PaidAt         *time.Time `gorm:"column:paid_at"`
	RefundedAt     *time.Time `gorm:"column:refunded_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the historical table name.
func (Order) TableName() string {
	return "orders"
}

// TotalYen returns the line total including any shipping fee carried on the row.
func (o Order) TotalYen() int {
	return o.Quantity*o.UnitPriceYen + o.ShippingFeeYen
}
