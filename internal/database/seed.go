package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
)

type seedProduct struct {
	sku, name, price string
	reorderLevel     int
}

var (
	demoProducts = []seedProduct{
		{"SF-MAX-20W50", "SuperFuel Max 20W-50", "4500.00", 30},
		{"ED-SYN-5W30", "EcoDrive Synthetic 5W-30", "7200.00", 40},
		{"PM-SEMI-10W40", "ProMotor Semi-Synthetic 10W-40", "5800.00", 35},
	}
	demoWarehouses = []models.Warehouse{
		{Code: "NCW", Name: "Nairobi Central Warehouse", Capacity: 50000},
		{Code: "MRW", Name: "Mombasa Regional Warehouse", Capacity: 30000},
		{Code: "KSW", Name: "Kisumu Branch Warehouse", Capacity: 15000},
	}
	demoCustomers = []struct{ name, email, limit, balance string }{
		{"Quick Auto Services Ltd", "info@quickautoservices.co.ke", "500000.00", "120000.00"},
		{"Premium Motors Kenya", "sarah.w@premiummotors.co.ke", "1000000.00", "450000.00"},
		{"Coast Logistics & Transport", "hassan@coastlogistics.co.ke", "300000.00", "85000.00"},
	}
)

// SeedDemo loads the demo catalogue into an empty store: every product is
// stocked in every warehouse. A store that already has products is left alone.
func SeedDemo(ctx context.Context, store repository.Store, logger *zap.Logger) error {
	existing, err := store.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("Demo seed skipped, catalogue not empty", zap.Int("products", len(existing)))
		return nil
	}

	err = store.WithTx(ctx, func(tx repository.Tx) error {
		products := make([]*models.Product, 0, len(demoProducts))
		for _, sp := range demoProducts {
			p := &models.Product{
				SKU:          sp.sku,
				Name:         sp.name,
				Price:        decimal.RequireFromString(sp.price),
				TaxRate:      decimal.NewFromInt(16),
				ReorderLevel: sp.reorderLevel,
			}
			if err := tx.CreateProduct(ctx, p); err != nil {
				return err
			}
			products = append(products, p)
		}

		restocked := time.Now().UTC().AddDate(0, 0, -7)
		for i := range demoWarehouses {
			w := demoWarehouses[i]
			if err := tx.CreateWarehouse(ctx, &w); err != nil {
				return err
			}
			for j, p := range products {
				qty := 50 + 50*((i+j)%4)
				inv := &models.Inventory{
					ProductID:         p.ID,
					WarehouseID:       w.ID,
					Quantity:          qty,
					AvailableQuantity: qty,
					LastRestockDate:   &restocked,
				}
				if err := tx.CreateInventory(ctx, inv); err != nil {
					return err
				}
			}
		}

		for _, dc := range demoCustomers {
			c := &models.Customer{
				Name:           dc.name,
				Email:          dc.email,
				CreditLimit:    decimal.RequireFromString(dc.limit),
				CurrentBalance: decimal.RequireFromString(dc.balance),
			}
			if err := tx.CreateCustomer(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Demo data seeded",
		zap.Int("products", len(demoProducts)),
		zap.Int("warehouses", len(demoWarehouses)),
		zap.Int("customers", len(demoCustomers)))
	return nil
}
