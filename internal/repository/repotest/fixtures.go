// Package repotest seeds a MemoryStore for engine tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
)

type Fixture struct {
	T     *testing.T
	Store *repository.MemoryStore
}

func New(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{T: t, Store: repository.NewMemoryStore(2 * time.Second)}
}

func (f *Fixture) tx(fn func(ctx context.Context, tx repository.Tx) error) {
	f.T.Helper()
	ctx := context.Background()
	require.NoError(f.T, f.Store.WithTx(ctx, func(tx repository.Tx) error { return fn(ctx, tx) }))
}

func (f *Fixture) Product(sku, price string, reorderLevel int) *models.Product {
	f.T.Helper()
	p := &models.Product{
		SKU:          sku,
		Name:         sku,
		Price:        decimal.RequireFromString(price),
		TaxRate:      decimal.NewFromInt(16),
		ReorderLevel: reorderLevel,
	}
	f.tx(func(ctx context.Context, tx repository.Tx) error { return tx.CreateProduct(ctx, p) })
	return p
}

func (f *Fixture) Warehouse(code string) *models.Warehouse {
	f.T.Helper()
	w := &models.Warehouse{Code: code, Name: code + " Warehouse", Capacity: 10000}
	f.tx(func(ctx context.Context, tx repository.Tx) error { return tx.CreateWarehouse(ctx, w) })
	return w
}

func (f *Fixture) Customer(name, limit, balance string) *models.Customer {
	f.T.Helper()
	c := &models.Customer{
		Name:           name,
		Email:          name + "@example.com",
		CreditLimit:    decimal.RequireFromString(limit),
		CurrentBalance: decimal.RequireFromString(balance),
	}
	f.tx(func(ctx context.Context, tx repository.Tx) error { return tx.CreateCustomer(ctx, c) })
	return c
}

func (f *Fixture) Stock(productID, warehouseID uuid.UUID, qty int) *models.Inventory {
	f.T.Helper()
	inv := &models.Inventory{ProductID: productID, WarehouseID: warehouseID, Quantity: qty, AvailableQuantity: qty}
	f.tx(func(ctx context.Context, tx repository.Tx) error { return tx.CreateInventory(ctx, inv) })
	return inv
}

// Inventory reads the current row and checks the counter invariant.
func (f *Fixture) Inventory(productID, warehouseID uuid.UUID) *models.Inventory {
	f.T.Helper()
	inv, err := f.Store.GetInventory(context.Background(), productID, warehouseID)
	require.NoError(f.T, err)
	require.True(f.T, inv.Consistent(), "inventory invariant broken: %+v", inv)
	return inv
}
