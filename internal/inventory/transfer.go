package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/tracing"
)

type TransferRequest struct {
	ProductID       uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Quantity        int
	RequestedBy     *uuid.UUID
	Notes           string
}

// TransferService moves unreserved stock between two warehouses.
type TransferService struct {
	store   repository.Store
	stock   *StockService
	metrics awspkg.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewTransferService(store repository.Store, stock *StockService, metrics awspkg.Metrics, logger *zap.Logger) *TransferService {
	if metrics == nil {
		metrics = awspkg.NopMetrics{}
	}
	return &TransferService{
		store:   store,
		stock:   stock,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Transfer locks both records in (warehouse, product) order, then moves qty
// units from the source's available stock to the destination. Reserved
// counters are never touched.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (transfer *models.StockTransfer, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Transfer", trace.WithAttributes(
		attribute.String("product_id", req.ProductID.String()),
		attribute.String("from_warehouse_id", req.FromWarehouseID.String()),
		attribute.String("to_warehouse_id", req.ToWarehouseID.String()),
		attribute.Int("quantity", req.Quantity),
	))
	defer func() { tracing.End(span, err) }()

	if req.Quantity <= 0 {
		return nil, apperrors.ErrInvalidInput.Withf("transfer quantity must be positive, got %d", req.Quantity)
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return nil, apperrors.ErrInvalidInput.Withf("source and destination warehouse are the same")
	}

	from := repository.InventoryKey{WarehouseID: req.FromWarehouseID, ProductID: req.ProductID}
	to := repository.InventoryKey{WarehouseID: req.ToWarehouseID, ProductID: req.ProductID}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		keys := []repository.InventoryKey{from, to}
		repository.SortInventoryKeys(keys)
		rows := make(map[repository.InventoryKey]*models.Inventory, 2)
		for _, k := range keys {
			inv, err := tx.LockInventory(ctx, k.ProductID, k.WarehouseID)
			if err != nil {
				if k == from && errors.Is(err, apperrors.ErrRecordNotFound) {
					return apperrors.ErrInsufficientStock.Withf("product %s has no stock at warehouse %s", req.ProductID, req.FromWarehouseID)
				}
				return err
			}
			rows[k] = inv
		}

		source, dest := rows[from], rows[to]
		if source.AvailableQuantity < req.Quantity {
			return apperrors.ErrInsufficientStock.Withf("warehouse %s: available %d, requested %d",
				req.FromWarehouseID, source.AvailableQuantity, req.Quantity)
		}
		if err := adjust(ctx, tx, source, -req.Quantity, 0); err != nil {
			return err
		}
		if err := adjust(ctx, tx, dest, req.Quantity, 0); err != nil {
			return err
		}

		completed := time.Now().UTC()
		transfer = &models.StockTransfer{
			ID:              uuid.New(),
			ProductID:       req.ProductID,
			FromWarehouseID: req.FromWarehouseID,
			ToWarehouseID:   req.ToWarehouseID,
			RequestedBy:     req.RequestedBy,
			Quantity:        req.Quantity,
			Status:          models.TransferCompleted,
			Notes:           req.Notes,
			CompletedAt:     &completed,
		}
		return tx.CreateTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	awspkg.Emit(s.metrics, awspkg.MetricStockTransferred, map[string]string{
		"FromWarehouseID": req.FromWarehouseID.String(),
		"ToWarehouseID":   req.ToWarehouseID.String(),
	})
	s.logger.Info("stock transferred",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("from_warehouse_id", req.FromWarehouseID.String()),
		zap.String("to_warehouse_id", req.ToWarehouseID.String()),
		zap.Int("quantity", req.Quantity))
	s.stock.AfterChange(ctx, req.ProductID)
	return transfer, nil
}

// History lists the transfers of a product, newest first.
func (s *TransferService) History(ctx context.Context, productID uuid.UUID) ([]models.StockTransfer, error) {
	return s.store.ListTransfers(ctx, productID)
}
