package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/credit"
	"github.com/Harrison-Muraya/L-SalesPro/internal/inventory"
	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/notify"
	"github.com/Harrison-Muraya/L-SalesPro/internal/pricing"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/tracing"
)

const tracerName = "github.com/Harrison-Muraya/L-SalesPro/internal/orders"

type Config struct {
	OrderPrefix    string
	CurrencySymbol string
	// CreditWarningPercent is the utilisation at or above which a credit
	// warning is raised after an order. Zero disables the warning.
	CreditWarningPercent decimal.Decimal
}

type OrderService struct {
	store        repository.Store
	reservations *inventory.ReservationService
	stock        *inventory.StockService
	credit       *credit.Controller
	notifier     notify.Notifier
	metrics      awspkg.Metrics
	cfg          Config
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewOrderService(
	store repository.Store,
	reservations *inventory.ReservationService,
	stock *inventory.StockService,
	creditCtl *credit.Controller,
	notifier notify.Notifier,
	metrics awspkg.Metrics,
	cfg Config,
	logger *zap.Logger,
) *OrderService {
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = "ORD"
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "KES"
	}
	if metrics == nil {
		metrics = awspkg.NopMetrics{}
	}
	return &OrderService{
		store:        store,
		reservations: reservations,
		stock:        stock,
		credit:       creditCtl,
		notifier:     notifier,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
}

// price quotes items against products. An item without a unit price uses the
// catalog price.
func price(items []ItemRequest, products map[uuid.UUID]*models.Product, discountType string, discountValue decimal.Decimal) (*pricing.Quote, error) {
	lines := make([]pricing.LineInput, 0, len(items))
	for i, item := range items {
		product := products[item.ProductID]
		if product == nil {
			return nil, apperrors.ErrRecordNotFound.Withf("item %d: product %s", i, item.ProductID)
		}
		discount, err := pricing.ParseDiscount(item.DiscountType, item.DiscountValue)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		unitPrice := product.Price
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		lines = append(lines, pricing.LineInput{
			UnitPrice: unitPrice,
			Quantity:  item.Quantity,
			TaxRate:   product.TaxRate,
			Discount:  discount,
		})
	}
	orderDiscount, err := pricing.ParseDiscount(discountType, discountValue)
	if err != nil {
		return nil, err
	}
	return pricing.QuoteOrder(lines, orderDiscount)
}

func itemKey(item ItemRequest) repository.InventoryKey {
	return repository.InventoryKey{WarehouseID: item.WarehouseID, ProductID: item.ProductID}
}

func productIDs(items []ItemRequest) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CalculateTotal prices items the same way CreateOrder does, without
// reserving stock or touching credit.
func (s *OrderService) CalculateTotal(ctx context.Context, req CalculateTotalRequest) (*pricing.Quote, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("order has no items")
	}
	products, err := s.store.GetProducts(ctx, productIDs(req.Items))
	if err != nil {
		return nil, err
	}
	return price(req.Items, products, req.DiscountType, req.DiscountValue)
}

func (s *OrderService) orderNumber(ctx context.Context, tx repository.Tx, at time.Time) (string, error) {
	period := at.Format("2006-01")
	seq, err := tx.NextOrderSequence(ctx, period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%03d", s.cfg.OrderPrefix, period, seq), nil
}

// CreateOrder prices, credit-checks, numbers and reserves a new pending order
// in one transaction, then charges the customer. Any failure leaves no trace.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.CreateOrder", trace.WithAttributes(
		attribute.String("customer_id", req.CustomerID.String()),
		attribute.Int("items", len(req.Items)),
	))
	defer func() {
		if err != nil {
			awspkg.Emit(s.metrics, awspkg.MetricOrdersFailed, nil)
		}
		tracing.End(span, err)
	}()

	if len(req.Items) == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("order has no items")
	}

	var customer *models.Customer
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		customer, err = tx.LockCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		products, err := tx.GetProducts(ctx, productIDs(req.Items))
		if err != nil {
			return err
		}
		quote, err := price(req.Items, products, req.DiscountType, req.DiscountValue)
		if err != nil {
			return err
		}
		if err := s.credit.Validate(customer, quote.Total); err != nil {
			return err
		}

		now := s.now().UTC()
		number, err := s.orderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:             uuid.New(),
			OrderNumber:    number,
			CustomerID:     customer.ID,
			CreatedBy:      req.CreatedBy,
			Status:         models.OrderPending,
			Subtotal:       quote.Subtotal,
			DiscountType:   string(quote.DiscountType),
			DiscountValue:  quote.DiscountValue,
			DiscountAmount: quote.OrderDiscount,
			TaxAmount:      quote.TaxAmount,
			TotalAmount:    quote.Total,
			Notes:          req.Notes,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		// Reserve in (warehouse, product) order so concurrent orders lock
		// inventory rows in the same sequence.
		idx := make([]int, len(req.Items))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return itemKey(req.Items[idx[a]]).Less(itemKey(req.Items[idx[b]]))
		})

		order.Items = make([]models.OrderItem, 0, len(req.Items))
		for _, i := range idx {
			item, line := req.Items[i], quote.Lines[i]
			_, err := s.reservations.ReserveTx(ctx, tx, inventory.ReserveRequest{
				ProductID:   item.ProductID,
				WarehouseID: item.WarehouseID,
				Quantity:    item.Quantity,
				OrderID:     &order.ID,
			})
			if errors.Is(err, apperrors.ErrRecordNotFound) {
				return apperrors.ErrInsufficientStock.Withf("product %s is not stocked at warehouse %s", item.ProductID, item.WarehouseID)
			}
			if err != nil {
				return err
			}

			orderItem := models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      item.ProductID,
				WarehouseID:    item.WarehouseID,
				Quantity:       line.Quantity,
				UnitPrice:      line.UnitPrice,
				DiscountType:   string(line.DiscountType),
				DiscountValue:  line.DiscountValue,
				DiscountAmount: line.DiscountAmount,
				Subtotal:       line.Subtotal,
				TaxRate:        line.TaxRate,
				TaxAmount:      line.TaxAmount,
				Total:          line.Total,
			}
			if err := tx.CreateOrderItem(ctx, &orderItem); err != nil {
				return err
			}
			order.Items = append(order.Items, orderItem)
		}

		return s.credit.Charge(ctx, tx, customer, order.TotalAmount)
	})
	if err != nil {
		s.logger.Warn("order creation failed",
			zap.String("customer_id", req.CustomerID.String()),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("order_number", order.OrderNumber))
	awspkg.Emit(s.metrics, awspkg.MetricOrdersCreated, nil)
	for _, item := range order.Items {
		awspkg.Emit(s.metrics, awspkg.MetricInventoryReserved, map[string]string{"WarehouseID": item.WarehouseID.String()})
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", customer.ID.String()),
		zap.String("total", order.TotalAmount.String()))

	s.stock.AfterConsume(ctx, productIDs(req.Items)...)
	s.checkCredit(ctx, customer)
	return order, nil
}

func (s *OrderService) checkCredit(ctx context.Context, customer *models.Customer) {
	if !s.cfg.CreditWarningPercent.IsPositive() || s.notifier == nil {
		return
	}
	utilization := s.credit.Utilization(customer)
	if utilization.LessThan(s.cfg.CreditWarningPercent) {
		return
	}
	if err := s.notifier.OnCreditLimitWarning(ctx, customer, utilization); err != nil {
		s.logger.Warn("credit warning notification failed",
			zap.String("customer_id", customer.ID.String()),
			zap.Error(err))
	}
}

// UpdateStatus moves an order along the status table and applies the side
// effects of the new status in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("status", string(status)),
	))
	defer func() { tracing.End(span, err) }()

	if !ValidStatus(status) {
		return nil, apperrors.ErrInvalidInput.Withf("unknown order status %q", status)
	}

	var (
		previous models.OrderStatus
		touched  []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if !CanTransition(order.Status, status) {
			return apperrors.ErrInvalidStatusTransition.Withf("%s -> %s", order.Status, status)
		}

		now := s.now().UTC()
		switch status {
		case models.OrderConfirmed:
			order.ConfirmedAt = &now
			touched, err = s.reservations.ConfirmOrder(ctx, tx, order.ID)
		case models.OrderShipped:
			order.ShippedAt = &now
		case models.OrderDelivered:
			order.DeliveredAt = &now
		case models.OrderCancelled:
			order.CancelledAt = &now
			err = s.cancel(ctx, tx, order, &touched)
		}
		if err != nil {
			return err
		}

		order.Status = status
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	awspkg.Emit(s.metrics, awspkg.MetricOrderStatusChanged, map[string]string{"Status": string(status)})
	s.logger.Info("order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	switch status {
	case models.OrderConfirmed:
		for _, item := range order.Items {
			awspkg.Emit(s.metrics, awspkg.MetricInventoryConfirmed, map[string]string{"WarehouseID": item.WarehouseID.String()})
		}
		if s.notifier != nil {
			if err := s.notifier.OnOrderConfirmed(ctx, order); err != nil {
				s.logger.Warn("order confirmed notification failed",
					zap.String("order_number", order.OrderNumber),
					zap.Error(err))
			}
		}
	case models.OrderCancelled:
		awspkg.Emit(s.metrics, awspkg.MetricOrdersCancelled, nil)
		if len(touched) > 0 {
			awspkg.Emit(s.metrics, awspkg.MetricInventoryReleased, nil)
		}
	}
	if len(touched) > 0 {
		s.stock.AfterChange(ctx, touched...)
	}
	return order, nil
}

// cancel releases the order's pending reservations and refunds its total.
// The customer row is locked before any reservation.
func (s *OrderService) cancel(ctx context.Context, tx repository.Tx, order *models.Order, touched *[]uuid.UUID) error {
	customer, err := tx.LockCustomer(ctx, order.CustomerID)
	if err != nil {
		return err
	}
	released, err := s.reservations.ReleaseOrder(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	*touched = released
	return s.credit.Refund(ctx, tx, customer, order.TotalAmount)
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) (*OrderResponse, error) {
	filter = filter.Normalized()
	list, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	pages := (total + int64(filter.Limit) - 1) / int64(filter.Limit)
	return &OrderResponse{
		Orders: list,
		Meta: MetaData{
			Page:        filter.Page,
			Limit:       filter.Limit,
			TotalOrders: total,
			TotalPages:  pages,
			HasMore:     int64(filter.Page) < pages,
		},
	}, nil
}
