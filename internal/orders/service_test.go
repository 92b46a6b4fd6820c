package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/credit"
	"github.com/Harrison-Muraya/L-SalesPro/internal/inventory"
	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/notify/notifytest"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository/repotest"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

var fixedNow = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	*repotest.Fixture
	notifier *notifytest.Recorder
	svc      *OrderService
}

func newHarness(t *testing.T, warnPercent string) *harness {
	f := repotest.New(t)
	rec := notifytest.New()
	stock := inventory.NewStockService(f.Store, nil, rec, nil, zap.NewNop())
	reservations := inventory.NewReservationService(f.Store, stock, 0, nil, zap.NewNop())
	svc := NewOrderService(f.Store, reservations, stock, credit.NewController("KES", zap.NewNop()), rec, nil, Config{
		OrderPrefix:          "ORD",
		CurrencySymbol:       "KES",
		CreditWarningPercent: dec(warnPercent),
	}, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return &harness{Fixture: f, notifier: rec, svc: svc}
}

func (h *harness) balance(id uuid.UUID) decimal.Decimal {
	h.T.Helper()
	c, err := h.Store.GetCustomer(context.Background(), id)
	require.NoError(h.T, err)
	return c.CurrentBalance
}

func TestCreateOrderPricesReservesAndCharges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SF-MAX-20W50", "4500", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	c := h.Customer("Quick Auto", "100000", "0")

	order, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-10-001", order.OrderNumber)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, dec("4500").Equal(order.Subtotal))
	assert.True(t, dec("720").Equal(order.TaxAmount))
	assert.True(t, dec("5220").Equal(order.TotalAmount), "total %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.True(t, dec("5220").Equal(order.Items[0].Total))

	inv := h.Inventory(p.ID, w.ID)
	assert.Equal(t, 10, inv.Quantity)
	assert.Equal(t, 1, inv.ReservedQuantity)
	assert.True(t, dec("5220").Equal(h.balance(c.ID)))

	stored, err := h.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)

	next, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-10-002", next.OrderNumber)
}

func TestCreateOrderCreditBoundary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "1000", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	exact := h.Customer("Exact", "10000", "8840")
	short := h.Customer("Short", "10000", "8840.01")

	req := func(id uuid.UUID) CreateOrderRequest {
		return CreateOrderRequest{CustomerID: id, Items: []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}}}
	}

	_, err := h.svc.CreateOrder(ctx, req(short.ID))
	assert.ErrorIs(t, err, apperrors.ErrCreditLimitExceeded)
	assert.True(t, dec("8840.01").Equal(h.balance(short.ID)))
	assert.Equal(t, 0, h.Inventory(p.ID, w.ID).ReservedQuantity)

	order, err := h.svc.CreateOrder(ctx, req(exact.ID))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-10-001", order.OrderNumber, "rejected order must not consume a number")
	assert.True(t, dec("10000").Equal(h.balance(exact.ID)))
}

func TestCreateOrderRollsBackOnShortStock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "100", 0)
	q := h.Product("SKU-2", "100", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	h.Stock(q.ID, w.ID, 2)
	c := h.Customer("Buyer", "100000", "0")

	_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items: []ItemRequest{
			{ProductID: p.ID, WarehouseID: w.ID, Quantity: 5},
			{ProductID: q.ID, WarehouseID: w.ID, Quantity: 3},
		},
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	assert.Equal(t, 0, h.Inventory(p.ID, w.ID).ReservedQuantity)
	assert.Equal(t, 0, h.Inventory(q.ID, w.ID).ReservedQuantity)
	assert.True(t, h.balance(c.ID).IsZero())

	list, err := h.svc.ListOrders(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.Meta.TotalOrders)
}

func TestCreateOrderWithoutStockRecordIsShortStock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "100", 0)
	w := h.Warehouse("WH-A")
	c := h.Customer("Buyer", "100000", "0")

	_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	_, err = h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: uuid.New(), WarehouseID: w.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)

	_, err = h.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: c.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "10", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	buyers := []*models.Customer{h.Customer("A", "100000", "0"), h.Customer("B", "100000", "0")}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.svc.CreateOrder(ctx, CreateOrderRequest{
				CustomerID: id,
				Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 6}},
			})
		}(i, b.ID)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.True(t, errors.Is(err, apperrors.ErrInsufficientStock), "unexpected error: %v", err)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 6, h.Inventory(p.ID, w.ID).ReservedQuantity)
}

func TestStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "100", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	c := h.Customer("Buyer", "100000", "0")

	order, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	confirmed, err := h.svc.UpdateStatus(ctx, order.ID, models.OrderConfirmed)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, []string{order.OrderNumber}, h.notifier.Confirmed)

	inv := h.Inventory(p.ID, w.ID)
	assert.Equal(t, 6, inv.Quantity)
	assert.Equal(t, 0, inv.ReservedQuantity)
	assert.Equal(t, 6, inv.AvailableQuantity)

	for _, status := range []models.OrderStatus{models.OrderProcessing, models.OrderShipped} {
		_, err = h.svc.UpdateStatus(ctx, order.ID, status)
		require.NoError(t, err)
	}

	_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderConfirmed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
	_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)

	delivered, err := h.svc.UpdateStatus(ctx, order.ID, models.OrderDelivered)
	require.NoError(t, err)
	assert.NotNil(t, delivered.ShippedAt)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
	_, err = h.svc.UpdateStatus(ctx, order.ID, "archived")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = h.svc.UpdateStatus(ctx, uuid.New(), models.OrderConfirmed)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestCancelPendingOrderRestoresStockAndCredit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "250", 0)
	a, b := h.Warehouse("WH-A"), h.Warehouse("WH-B")
	h.Stock(p.ID, a.ID, 10)
	h.Stock(p.ID, b.ID, 10)
	c := h.Customer("Buyer", "100000", "1500")

	order, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items: []ItemRequest{
			{ProductID: p.ID, WarehouseID: b.ID, Quantity: 3},
			{ProductID: p.ID, WarehouseID: a.ID, Quantity: 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, h.Inventory(p.ID, a.ID).ReservedQuantity)
	assert.Equal(t, 3, h.Inventory(p.ID, b.ID).ReservedQuantity)
	assert.True(t, dec("1500").Add(order.TotalAmount).Equal(h.balance(c.ID)))

	cancelled, err := h.svc.UpdateStatus(ctx, order.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	for _, w := range []uuid.UUID{a.ID, b.ID} {
		inv := h.Inventory(p.ID, w)
		assert.Equal(t, 10, inv.Quantity)
		assert.Equal(t, 0, inv.ReservedQuantity)
		assert.Equal(t, 10, inv.AvailableQuantity)
	}
	assert.True(t, dec("1500").Equal(h.balance(c.ID)))

	_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderConfirmed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
}

// Stock already shipped out of a confirmed order is not put back on cancel;
// only the customer's balance is refunded.
func TestCancelAfterConfirmRefundsCreditWithoutRestocking(t *testing.T) {
	for _, reached := range []models.OrderStatus{models.OrderConfirmed, models.OrderProcessing} {
		t.Run(string(reached), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, "0")
			p := h.Product("SKU-1", "100", 0)
			w := h.Warehouse("WH-A")
			h.Stock(p.ID, w.ID, 10)
			c := h.Customer("Buyer", "100000", "200")

			order, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
				CustomerID: c.ID,
				Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 4}},
			})
			require.NoError(t, err)
			_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderConfirmed)
			require.NoError(t, err)
			if reached == models.OrderProcessing {
				_, err = h.svc.UpdateStatus(ctx, order.ID, models.OrderProcessing)
				require.NoError(t, err)
			}
			assert.True(t, dec("200").Add(order.TotalAmount).Equal(h.balance(c.ID)))

			cancelled, err := h.svc.UpdateStatus(ctx, order.ID, models.OrderCancelled)
			require.NoError(t, err)
			assert.Equal(t, models.OrderCancelled, cancelled.Status)
			assert.True(t, dec("200").Equal(h.balance(c.ID)), "balance %s", h.balance(c.ID))

			inv := h.Inventory(p.ID, w.ID)
			assert.Equal(t, 6, inv.Quantity)
			assert.Equal(t, 0, inv.ReservedQuantity)
			assert.Equal(t, 6, inv.AvailableQuantity)
		})
	}
}

func TestCalculateTotalHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "4500", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)

	quote, err := h.svc.CalculateTotal(ctx, CalculateTotalRequest{
		Items: []ItemRequest{{
			ProductID:     p.ID,
			WarehouseID:   w.ID,
			Quantity:      2,
			DiscountType:  "fixed",
			DiscountValue: dec("500"),
		}},
		DiscountType:  "percentage",
		DiscountValue: dec("10"),
	})
	require.NoError(t, err)
	assert.True(t, dec("8500").Equal(quote.Subtotal))
	assert.True(t, dec("850").Equal(quote.OrderDiscount))
	assert.True(t, dec("1360").Equal(quote.TaxAmount))
	assert.True(t, dec("9010").Equal(quote.Total), "total %s", quote.Total)
	assert.Equal(t, 0, h.Inventory(p.ID, w.ID).ReservedQuantity)

	override := dec("4000")
	quote, err = h.svc.CalculateTotal(ctx, CalculateTotalRequest{
		Items: []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1, UnitPrice: &override}},
	})
	require.NoError(t, err)
	assert.True(t, dec("4640").Equal(quote.Total))

	_, err = h.svc.CalculateTotal(ctx, CalculateTotalRequest{
		Items:         []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
		DiscountType:  "percentage",
		DiscountValue: dec("120"),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreditWarningAfterOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "80")
	p := h.Product("SKU-1", "1000", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	c := h.Customer("Heavy User", "10000", "7000")
	light := h.Customer("Light User", "100000", "0")

	for _, id := range []uuid.UUID{c.ID, light.ID} {
		_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
			CustomerID: id,
			Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	require.Len(t, h.notifier.CreditWarnings, 1)
	assert.True(t, dec("81.6").Equal(h.notifier.CreditWarnings["Heavy User"]))
}

func TestInvoice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SF-MAX-20W50", "4500", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 10)
	c := h.Customer("Quick Auto", "100000", "0")

	order, err := h.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: c.ID,
		Items:      []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	inv, err := h.svc.Invoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, inv.OrderNumber)
	assert.Equal(t, "Quick Auto", inv.Customer.Name)
	assert.Equal(t, "System", inv.CreatedBy)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "SF-MAX-20W50", inv.Items[0].SKU)
	assert.Equal(t, "KES 4,500.00 /=", inv.Items[0].Formatted["unit_price"])
	assert.Equal(t, "KES 5,220.00 /=", inv.Summary.Formatted["total_amount"])
	assert.Equal(t, "KES 720.00 /=", inv.Summary.Formatted["tax_amount"])
}

func TestListOrdersPagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	p := h.Product("SKU-1", "10", 0)
	w := h.Warehouse("WH-A")
	h.Stock(p.ID, w.ID, 100)
	c := h.Customer("Buyer", "100000", "0")
	other := h.Customer("Other", "100000", "0")

	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: c.ID, Items: []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}}})
		require.NoError(t, err)
	}
	_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: other.ID, Items: []ItemRequest{{ProductID: p.ID, WarehouseID: w.ID, Quantity: 1}}})
	require.NoError(t, err)

	resp, err := h.svc.ListOrders(ctx, repository.OrderFilter{CustomerID: &c.ID, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Orders, 2)
	assert.Equal(t, int64(3), resp.Meta.TotalOrders)
	assert.Equal(t, int64(2), resp.Meta.TotalPages)
	assert.True(t, resp.Meta.HasMore)

	resp, err = h.svc.ListOrders(ctx, repository.OrderFilter{CustomerID: &c.ID, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Orders, 1)
	assert.False(t, resp.Meta.HasMore)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.OrderPending, models.OrderConfirmed))
	assert.True(t, CanTransition(models.OrderProcessing, models.OrderCancelled))
	assert.False(t, CanTransition(models.OrderPending, models.OrderShipped))
	assert.False(t, CanTransition(models.OrderShipped, models.OrderConfirmed))
	assert.False(t, CanTransition(models.OrderCancelled, models.OrderPending))
	assert.False(t, CanTransition(models.OrderPending, models.OrderPending))
}
