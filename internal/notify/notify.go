// Package notify delivers back-office events after their transaction commits.
// Delivery is best effort: callers log a failure and move on.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
)

type Notifier interface {
	OnOrderConfirmed(ctx context.Context, order *models.Order) error
	OnLowStock(ctx context.Context, product *models.Product, totalAvailable int) error
	OnCreditLimitWarning(ctx context.Context, customer *models.Customer, utilization decimal.Decimal) error
}

const (
	EventOrderConfirmed     = "order.confirmed"
	EventLowStock           = "inventory.low_stock"
	EventCreditLimitWarning = "customer.credit_limit_warning"
)

// Event is the wire form shared by the bus notifiers.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderConfirmedPayload struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

type LowStockPayload struct {
	ProductID      uuid.UUID `json:"product_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	ReorderLevel   int       `json:"reorder_level"`
	TotalAvailable int       `json:"total_available"`
}

type CreditLimitWarningPayload struct {
	CustomerID         uuid.UUID       `json:"customer_id"`
	Name               string          `json:"name"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	UtilizationPercent decimal.Decimal `json:"utilization_percent"`
}

func newEvent(eventType, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

func orderConfirmedEvent(order *models.Order) (Event, error) {
	return newEvent(EventOrderConfirmed, order.ID.String(), OrderConfirmedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
	})
}

func lowStockEvent(product *models.Product, totalAvailable int) (Event, error) {
	return newEvent(EventLowStock, product.ID.String(), LowStockPayload{
		ProductID:      product.ID,
		SKU:            product.SKU,
		Name:           product.Name,
		ReorderLevel:   product.ReorderLevel,
		TotalAvailable: totalAvailable,
	})
}

func creditWarningEvent(customer *models.Customer, utilization decimal.Decimal) (Event, error) {
	return newEvent(EventCreditLimitWarning, customer.ID.String(), CreditLimitWarningPayload{
		CustomerID:         customer.ID,
		Name:               customer.Name,
		CreditLimit:        customer.CreditLimit,
		CurrentBalance:     customer.CurrentBalance,
		UtilizationPercent: utilization,
	})
}

// publisher sends one encoded event.
type publisher interface {
	publish(ctx context.Context, evt Event) error
}

// busNotifier adapts a publisher to Notifier.
type busNotifier struct {
	pub publisher
}

func (n busNotifier) OnOrderConfirmed(ctx context.Context, order *models.Order) error {
	evt, err := orderConfirmedEvent(order)
	if err != nil {
		return err
	}
	return n.pub.publish(ctx, evt)
}

func (n busNotifier) OnLowStock(ctx context.Context, product *models.Product, totalAvailable int) error {
	evt, err := lowStockEvent(product, totalAvailable)
	if err != nil {
		return err
	}
	return n.pub.publish(ctx, evt)
}

func (n busNotifier) OnCreditLimitWarning(ctx context.Context, customer *models.Customer, utilization decimal.Decimal) error {
	evt, err := creditWarningEvent(customer, utilization)
	if err != nil {
		return err
	}
	return n.pub.publish(ctx, evt)
}

// Multi fans every event out to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) OnOrderConfirmed(ctx context.Context, order *models.Order) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnOrderConfirmed(ctx, order))
	}
	return errors.Join(errs...)
}

func (m Multi) OnLowStock(ctx context.Context, product *models.Product, totalAvailable int) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnLowStock(ctx, product, totalAvailable))
	}
	return errors.Join(errs...)
}

func (m Multi) OnCreditLimitWarning(ctx context.Context, customer *models.Customer, utilization decimal.Decimal) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnCreditLimitWarning(ctx, customer, utilization))
	}
	return errors.Join(errs...)
}
