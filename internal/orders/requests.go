package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
)

type ItemRequest struct {
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required,min=1"`
	// UnitPrice overrides the catalog price when set.
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountType  string           `json:"discount_type,omitempty" binding:"omitempty,discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
}

type CreateOrderRequest struct {
	CustomerID    uuid.UUID       `json:"customer_id" binding:"required"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty"`
	Items         []ItemRequest   `json:"items" binding:"required,min=1,dive"`
	DiscountType  string          `json:"discount_type,omitempty" binding:"omitempty,discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Notes         string          `json:"notes,omitempty"`
}

type CalculateTotalRequest struct {
	Items         []ItemRequest   `json:"items" binding:"required,min=1,dive"`
	DiscountType  string          `json:"discount_type,omitempty" binding:"omitempty,discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}
