package repository

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
)

// Reader is the unlocked read side. Reads outside a Tx may be stale.
type Reader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetInventory(ctx context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error)
	ListInventoryByProduct(ctx context.Context, productID uuid.UUID) ([]models.Inventory, error)
	GetReservation(ctx context.Context, reference string) (*models.StockReservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	ListTransfers(ctx context.Context, productID uuid.UUID) ([]models.StockTransfer, error)
}

// Tx is one unit of work. The Lock* methods take an exclusive row lock that is
// held until the transaction ends; a wait longer than the store's lock timeout
// fails with errors.ErrLockTimeout.
type Tx interface {
	Reader

	LockInventory(ctx context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error)
	LockReservation(ctx context.Context, reference string) (*models.StockReservation, error)
	LockOrderReservations(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	LockCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// NextOrderSequence increments and returns the counter of period (YYYY-MM).
	NextOrderSequence(ctx context.Context, period string) (int, error)

	SaveInventory(ctx context.Context, inv *models.Inventory) error
	SaveReservation(ctx context.Context, r *models.StockReservation) error
	SaveCustomer(ctx context.Context, c *models.Customer) error
	SaveOrder(ctx context.Context, o *models.Order) error

	CreateReservation(ctx context.Context, r *models.StockReservation) error
	CreateOrder(ctx context.Context, o *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	CreateTransfer(ctx context.Context, t *models.StockTransfer) error

	CreateProduct(ctx context.Context, p *models.Product) error
	CreateWarehouse(ctx context.Context, w *models.Warehouse) error
	CreateCustomer(ctx context.Context, c *models.Customer) error
	CreateInventory(ctx context.Context, inv *models.Inventory) error
}

// Store runs units of work. fn's error rolls the whole transaction back.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type OrderFilter struct {
	CustomerID *uuid.UUID
	Status     models.OrderStatus
	Page       int
	Limit      int
}

func (f OrderFilter) Normalized() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return f
}

// InventoryKey identifies one inventory row.
type InventoryKey struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
}

// Less orders keys by (warehouse, product).
func (k InventoryKey) Less(o InventoryKey) bool {
	if c := bytes.Compare(k.WarehouseID[:], o.WarehouseID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.ProductID[:], o.ProductID[:]) < 0
}

// SortInventoryKeys orders keys by (warehouse, product). Every multi-row
// inventory lock is taken in this order.
func SortInventoryKeys(keys []InventoryKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
