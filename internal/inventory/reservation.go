package inventory

import (
	"context"
	"errors"
	"sort"
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

const (
	DefaultReservationTTL = 30 * time.Minute
	sweepBatchSize        = 500
)

type ReserveRequest struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
	OrderID     *uuid.UUID
}

// ReservationService moves reservations through pending -> confirmed |
// released | expired. Only pending reservations change.
type ReservationService struct {
	store   repository.Store
	stock   *StockService
	ttl     time.Duration
	metrics awspkg.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	batchSize int
}

func NewReservationService(store repository.Store, stock *StockService, ttl time.Duration, metrics awspkg.Metrics, logger *zap.Logger) *ReservationService {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	if metrics == nil {
		metrics = awspkg.NopMetrics{}
	}
	return &ReservationService{
		store:   store,
		stock:   stock,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,

		batchSize: sweepBatchSize,
	}
}

func newReference() string {
	return "RSV-" + uuid.NewString()
}

// Reserve holds qty units of one inventory record in its own transaction.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (res *models.StockReservation, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Reserve", trace.WithAttributes(
		attribute.String("product_id", req.ProductID.String()),
		attribute.String("warehouse_id", req.WarehouseID.String()),
		attribute.Int("quantity", req.Quantity),
	))
	defer func() { tracing.End(span, err) }()

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		res, err = s.ReserveTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	awspkg.Emit(s.metrics, awspkg.MetricInventoryReserved, map[string]string{"WarehouseID": req.WarehouseID.String()})
	s.logger.Info("stock reserved",
		zap.String("reference", res.Reference),
		zap.String("product_id", res.ProductID.String()),
		zap.String("warehouse_id", res.WarehouseID.String()),
		zap.Int("quantity", res.Quantity))
	s.stock.AfterConsume(ctx, req.ProductID)
	return res, nil
}

// ReserveTx is Reserve inside the caller's transaction. The caller runs the
// post-commit hooks.
func (s *ReservationService) ReserveTx(ctx context.Context, tx repository.Tx, req ReserveRequest) (*models.StockReservation, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.ErrInvalidInput.Withf("reservation quantity must be positive, got %d", req.Quantity)
	}

	inv, err := tx.LockInventory(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	if inv.AvailableQuantity < req.Quantity {
		return nil, apperrors.ErrInsufficientStock.Withf("product %s at warehouse %s: available %d, requested %d",
			req.ProductID, req.WarehouseID, inv.AvailableQuantity, req.Quantity)
	}
	if err := adjust(ctx, tx, inv, 0, req.Quantity); err != nil {
		return nil, err
	}

	res := &models.StockReservation{
		ID:          uuid.New(),
		Reference:   newReference(),
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		OrderID:     req.OrderID,
		Quantity:    req.Quantity,
		Status:      models.ReservationPending,
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
	}
	if err := tx.CreateReservation(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Release returns a pending reservation's units to the available pool.
func (s *ReservationService) Release(ctx context.Context, reference string) (err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Release", trace.WithAttributes(attribute.String("reference", reference)))
	defer func() { tracing.End(span, err) }()

	var res *models.StockReservation
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		res, err = tx.LockReservation(ctx, reference)
		if err != nil {
			return err
		}
		if res.Status != models.ReservationPending {
			return apperrors.ErrReservationInvalidState.Withf("reservation %s is %s", reference, res.Status)
		}
		return s.restore(ctx, tx, res, models.ReservationReleased)
	})
	if err != nil {
		return err
	}

	awspkg.Emit(s.metrics, awspkg.MetricInventoryReleased, map[string]string{"WarehouseID": res.WarehouseID.String()})
	s.logger.Info("reservation released", zap.String("reference", reference), zap.Int("quantity", res.Quantity))
	s.stock.AfterChange(ctx, res.ProductID)
	return nil
}

// restore gives back the units of a locked pending reservation and marks it status.
func (s *ReservationService) restore(ctx context.Context, tx repository.Tx, res *models.StockReservation, status models.ReservationStatus) error {
	inv, err := tx.LockInventory(ctx, res.ProductID, res.WarehouseID)
	if err != nil {
		return err
	}
	if err := adjust(ctx, tx, inv, 0, -res.Quantity); err != nil {
		return err
	}
	res.Status = status
	return tx.SaveReservation(ctx, res)
}

// lockOrderReservations locks the order's pending reservations and returns
// them in (warehouse, product) order, the order their inventory rows must be
// locked in.
func lockOrderReservations(ctx context.Context, tx repository.Tx, orderID uuid.UUID) ([]models.StockReservation, error) {
	pending, err := tx.LockOrderReservations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return reservationKey(pending[i]).Less(reservationKey(pending[j]))
	})
	return pending, nil
}

func reservationKey(r models.StockReservation) repository.InventoryKey {
	return repository.InventoryKey{WarehouseID: r.WarehouseID, ProductID: r.ProductID}
}

// ConfirmOrder consumes every pending reservation of the order: the units
// leave both the reserved and the total quantity. It returns the affected
// product IDs.
func (s *ReservationService) ConfirmOrder(ctx context.Context, tx repository.Tx, orderID uuid.UUID) ([]uuid.UUID, error) {
	pending, err := lockOrderReservations(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	products := make([]uuid.UUID, 0, len(pending))
	for i := range pending {
		res := &pending[i]
		inv, err := tx.LockInventory(ctx, res.ProductID, res.WarehouseID)
		if err != nil {
			return nil, err
		}
		if err := adjust(ctx, tx, inv, -res.Quantity, -res.Quantity); err != nil {
			return nil, err
		}
		res.Status = models.ReservationConfirmed
		if err := tx.SaveReservation(ctx, res); err != nil {
			return nil, err
		}
		products = append(products, res.ProductID)
	}
	return products, nil
}

// ReleaseOrder releases every pending reservation of the order and returns
// the affected product IDs.
func (s *ReservationService) ReleaseOrder(ctx context.Context, tx repository.Tx, orderID uuid.UUID) ([]uuid.UUID, error) {
	pending, err := lockOrderReservations(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	products := make([]uuid.UUID, 0, len(pending))
	for i := range pending {
		if err := s.restore(ctx, tx, &pending[i], models.ReservationReleased); err != nil {
			return nil, err
		}
		products = append(products, pending[i].ProductID)
	}
	return products, nil
}

// SweepExpired expires every pending reservation whose expiry is before now,
// fetching them in batches and expiring each in its own transaction. A
// reservation another actor already moved out of pending is skipped; any
// other per-item failure is logged and the sweep continues. It returns how
// many reservations it expired.
func (s *ReservationService) SweepExpired(ctx context.Context, now time.Time) (processed int, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.SweepExpired")
	defer func() {
		span.SetAttributes(attribute.Int("expired", processed))
		tracing.End(span, err)
	}()

	var (
		touched    []uuid.UUID
		candidates int
	)
	for {
		batch, err := s.store.ListExpiredReservations(ctx, now, s.batchSize)
		if err != nil {
			return processed, err
		}
		candidates += len(batch)

		failed := 0
		for _, c := range batch {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			ok, err := s.expireOne(ctx, c.Reference, now)
			if err != nil {
				level := zap.ErrorLevel
				if errors.Is(err, apperrors.ErrLockTimeout) {
					level = zap.WarnLevel
				}
				s.logger.Log(level, "failed to expire reservation",
					zap.String("reference", c.Reference),
					zap.Error(err))
				failed++
				continue
			}
			if ok {
				processed++
				touched = append(touched, c.ProductID)
				awspkg.Emit(s.metrics, awspkg.MetricInventoryExpired, map[string]string{"WarehouseID": c.WarehouseID.String()})
			}
		}
		// A short batch was the whole backlog. Failed rows stay pending and
		// come back in the next batch, so a batch of nothing but failures ends
		// the sweep.
		if len(batch) < s.batchSize || failed == len(batch) {
			break
		}
	}

	if processed > 0 {
		s.logger.Info("expired stale reservations", zap.Int("count", processed), zap.Int("candidates", candidates))
		s.stock.AfterChange(ctx, touched...)
	}
	return processed, nil
}

// expireOne expires a reservation if it is still pending and past its expiry.
func (s *ReservationService) expireOne(ctx context.Context, reference string, now time.Time) (bool, error) {
	expired := false
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		res, err := tx.LockReservation(ctx, reference)
		if err != nil {
			return err
		}
		if res.Status != models.ReservationPending || !res.ExpiresAt.Before(now) {
			return nil
		}
		if err := s.restore(ctx, tx, res, models.ReservationExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}
