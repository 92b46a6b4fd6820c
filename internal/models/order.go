package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber    string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	CreatedBy      *uuid.UUID      `gorm:"type:uuid" json:"created_by,omitempty"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountType   string          `gorm:"type:varchar(20)" json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_value"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	Notes          string          `json:"notes,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OrderItem is immutable once written. Subtotal is the line amount after the line discount.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	WarehouseID    uuid.UUID       `gorm:"type:uuid;not null" json:"warehouse_id"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	DiscountType   string          `gorm:"type:varchar(20)" json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_value"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// OrderSequence is the per-month order number counter.
type OrderSequence struct {
	Period    string `gorm:"primaryKey;type:varchar(7)"`
	LastValue int    `gorm:"not null;default:0"`
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Product{},
		&Warehouse{},
		&Customer{},
		&Inventory{},
		&StockReservation{},
		&StockTransfer{},
		&Order{},
		&OrderItem{},
		&OrderSequence{},
	}
}
