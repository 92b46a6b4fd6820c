package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SKU          string          `gorm:"uniqueIndex;not null" json:"sku"`
	Name         string          `gorm:"not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:16" json:"tax_rate"`
	ReorderLevel int             `gorm:"not null;default:20" json:"reorder_level"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Warehouse struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"not null" json:"name"`
	Capacity  int       `gorm:"not null;default:0" json:"capacity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Customer carries the credit exposure. CurrentBalance is only changed by the credit controller.
type Customer struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Email          string          `gorm:"index" json:"email"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit_limit"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"current_balance"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
