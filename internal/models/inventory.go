package models

import (
	"time"

	"github.com/google/uuid"
)

// Inventory is the stock of one product in one warehouse.
// AvailableQuantity is always Quantity - ReservedQuantity.
type Inventory struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_warehouse" json:"product_id"`
	WarehouseID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_warehouse" json:"warehouse_id"`
	Quantity          int        `gorm:"not null;default:0" json:"quantity"`
	ReservedQuantity  int        `gorm:"not null;default:0" json:"reserved_quantity"`
	AvailableQuantity int        `gorm:"not null;default:0" json:"available_quantity"`
	LastRestockDate   *time.Time `json:"last_restock_date,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Inventory) TableName() string { return "inventory" }

// Consistent reports whether the counters satisfy the ledger invariant.
func (i *Inventory) Consistent() bool {
	return i.ReservedQuantity >= 0 &&
		i.AvailableQuantity >= 0 &&
		i.AvailableQuantity == i.Quantity-i.ReservedQuantity
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// StockReservation holds units of one inventory record until it is confirmed,
// released or expired. Only pending reservations change.
type StockReservation struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Reference   string            `gorm:"uniqueIndex;not null" json:"reference"`
	ProductID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	WarehouseID uuid.UUID         `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	OrderID     *uuid.UUID        `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Quantity    int               `gorm:"not null" json:"quantity"`
	Status      ReservationStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_reservation_status_expiry" json:"status"`
	ExpiresAt   time.Time         `gorm:"not null;index:idx_reservation_status_expiry" json:"expires_at"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
)

// StockTransfer is the audit row of a warehouse to warehouse move.
type StockTransfer struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	FromWarehouseID uuid.UUID      `gorm:"type:uuid;not null" json:"from_warehouse_id"`
	ToWarehouseID   uuid.UUID      `gorm:"type:uuid;not null" json:"to_warehouse_id"`
	RequestedBy     *uuid.UUID     `gorm:"type:uuid" json:"requested_by,omitempty"`
	Quantity        int            `gorm:"not null" json:"quantity"`
	Status          TransferStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes           string         `json:"notes,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
