package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/notify"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/tracing"
)

const tracerName = "github.com/Harrison-Muraya/L-SalesPro/internal/inventory"

type WarehouseStock struct {
	WarehouseID       uuid.UUID  `json:"warehouse_id"`
	WarehouseCode     string     `json:"warehouse_code"`
	WarehouseName     string     `json:"warehouse_name"`
	Quantity          int        `json:"quantity"`
	ReservedQuantity  int        `json:"reserved_quantity"`
	AvailableQuantity int        `json:"available_quantity"`
	LastRestockDate   *time.Time `json:"last_restock_date,omitempty"`
}

// StockReport is an unlocked, possibly stale view of one product's stock.
type StockReport struct {
	ProductID      uuid.UUID        `json:"product_id"`
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	ReorderLevel   int              `json:"reorder_level"`
	TotalQuantity  int              `json:"total_quantity"`
	TotalReserved  int              `json:"total_reserved"`
	TotalAvailable int              `json:"total_available"`
	Warehouses     []WarehouseStock `json:"warehouses"`
	IsLowStock     bool             `json:"is_low_stock"`
}

type LowStockWarehouse struct {
	WarehouseID       uuid.UUID `json:"warehouse_id"`
	WarehouseName     string    `json:"warehouse_name"`
	AvailableQuantity int       `json:"available_quantity"`
	Status            string    `json:"status"`
}

type LowStockProduct struct {
	ProductID    uuid.UUID           `json:"product_id"`
	SKU          string              `json:"sku"`
	Name         string              `json:"name"`
	ReorderLevel int                 `json:"reorder_level"`
	Warehouses   []LowStockWarehouse `json:"warehouses"`
}

// StockService reports stock, restocks, and runs the post-commit hooks
// (cache invalidation and low-stock alerts) for every stock change.
type StockService struct {
	store    repository.Store
	cache    StockCache
	notifier notify.Notifier
	metrics  awspkg.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewStockService(store repository.Store, cache StockCache, notifier notify.Notifier, metrics awspkg.Metrics, logger *zap.Logger) *StockService {
	if cache == nil {
		cache = nopCache{}
	}
	if metrics == nil {
		metrics = awspkg.NopMetrics{}
	}
	return &StockService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// ProductStock returns the per-warehouse stock of a product and its totals.
func (s *StockService) ProductStock(ctx context.Context, productID uuid.UUID) (*StockReport, error) {
	if report, ok := s.cache.Get(ctx, productID); ok {
		awspkg.Emit(s.metrics, awspkg.MetricCacheHits, map[string]string{"Cache": "stock"})
		return report, nil
	}
	awspkg.Emit(s.metrics, awspkg.MetricCacheMisses, map[string]string{"Cache": "stock"})

	report, err := s.buildReport(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, report)
	return report, nil
}

func (s *StockService) buildReport(ctx context.Context, productID uuid.UUID) (*StockReport, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListInventoryByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	warehouses, err := s.warehouseIndex(ctx)
	if err != nil {
		return nil, err
	}

	report := &StockReport{
		ProductID:    product.ID,
		SKU:          product.SKU,
		Name:         product.Name,
		ReorderLevel: product.ReorderLevel,
		Warehouses:   make([]WarehouseStock, 0, len(rows)),
	}
	for _, inv := range rows {
		w := warehouses[inv.WarehouseID]
		report.Warehouses = append(report.Warehouses, WarehouseStock{
			WarehouseID:       inv.WarehouseID,
			WarehouseCode:     w.Code,
			WarehouseName:     w.Name,
			Quantity:          inv.Quantity,
			ReservedQuantity:  inv.ReservedQuantity,
			AvailableQuantity: inv.AvailableQuantity,
			LastRestockDate:   inv.LastRestockDate,
		})
		report.TotalQuantity += inv.Quantity
		report.TotalReserved += inv.ReservedQuantity
		report.TotalAvailable += inv.AvailableQuantity
	}
	report.IsLowStock = report.TotalAvailable <= product.ReorderLevel
	return report, nil
}

func (s *StockService) warehouseIndex(ctx context.Context) (map[uuid.UUID]models.Warehouse, error) {
	list, err := s.store.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Warehouse, len(list))
	for _, w := range list {
		out[w.ID] = w
	}
	return out, nil
}

// LowStockReport lists, per product, the warehouses whose available stock is
// at or below the product's reorder level.
func (s *StockService) LowStockReport(ctx context.Context) ([]LowStockProduct, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	warehouses, err := s.warehouseIndex(ctx)
	if err != nil {
		return nil, err
	}

	var out []LowStockProduct
	for _, p := range products {
		rows, err := s.store.ListInventoryByProduct(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		var low []LowStockWarehouse
		for _, inv := range rows {
			if inv.AvailableQuantity > p.ReorderLevel {
				continue
			}
			status := "low_stock"
			if inv.AvailableQuantity <= 0 {
				status = "out_of_stock"
			}
			low = append(low, LowStockWarehouse{
				WarehouseID:       inv.WarehouseID,
				WarehouseName:     warehouses[inv.WarehouseID].Name,
				AvailableQuantity: inv.AvailableQuantity,
				Status:            status,
			})
		}
		if len(low) > 0 {
			out = append(out, LowStockProduct{
				ProductID:    p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				ReorderLevel: p.ReorderLevel,
				Warehouses:   low,
			})
		}
	}
	return out, nil
}

// Restock adds qty units to an existing inventory record.
func (s *StockService) Restock(ctx context.Context, productID, warehouseID uuid.UUID, qty int) (inv *models.Inventory, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Restock", trace.WithAttributes(
		attribute.String("product_id", productID.String()),
		attribute.String("warehouse_id", warehouseID.String()),
		attribute.Int("quantity", qty),
	))
	defer func() { tracing.End(span, err) }()

	if qty <= 0 {
		return nil, apperrors.ErrInvalidInput.Withf("restock quantity must be positive, got %d", qty)
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockInventory(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		locked.LastRestockDate = &now
		if err := adjust(ctx, tx, locked, qty, 0); err != nil {
			return err
		}
		inv = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	awspkg.Emit(s.metrics, awspkg.MetricStockRestocked, map[string]string{"WarehouseID": warehouseID.String()})
	s.logger.Info("inventory restocked",
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.Int("quantity", qty),
		zap.Int("available", inv.AvailableQuantity))
	s.AfterChange(ctx, productID)
	return inv, nil
}

// AfterChange runs after a committed stock change and drops the cached
// reports of the products.
func (s *StockService) AfterChange(ctx context.Context, productIDs ...uuid.UUID) {
	s.cache.Invalidate(ctx, uniqueIDs(productIDs)...)
}

// AfterConsume runs after a committed change that took available stock away
// (a reservation or an order). Besides AfterChange it raises a low-stock alert
// for every product whose total available quantity is at or below its
// reorder level. Releases, restocks and transfers never alert. Failures are
// logged only.
func (s *StockService) AfterConsume(ctx context.Context, productIDs ...uuid.UUID) {
	productIDs = uniqueIDs(productIDs)
	s.cache.Invalidate(ctx, productIDs...)

	for _, id := range productIDs {
		product, err := s.store.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("low stock check skipped", zap.String("product_id", id.String()), zap.Error(err))
			continue
		}
		rows, err := s.store.ListInventoryByProduct(ctx, id)
		if err != nil {
			s.logger.Warn("low stock check skipped", zap.String("product_id", id.String()), zap.Error(err))
			continue
		}
		total := 0
		for _, inv := range rows {
			total += inv.AvailableQuantity
		}
		if total > product.ReorderLevel {
			continue
		}

		awspkg.Emit(s.metrics, awspkg.MetricInventoryLow, map[string]string{"SKU": product.SKU})
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.OnLowStock(ctx, product, total); err != nil {
			s.logger.Warn("low stock notification failed",
				zap.String("product_id", id.String()),
				zap.Error(err))
		}
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
