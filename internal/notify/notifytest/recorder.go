// Package notifytest provides a Notifier that records calls for assertions.
package notifytest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
)

type Recorder struct {
	mu             sync.Mutex
	Confirmed      []string
	LowStock       map[string]int
	LowStockAlerts int
	CreditWarnings map[string]decimal.Decimal
	Err            error
}

func New() *Recorder {
	return &Recorder{LowStock: map[string]int{}, CreditWarnings: map[string]decimal.Decimal{}}
}

func (r *Recorder) OnOrderConfirmed(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Confirmed = append(r.Confirmed, order.OrderNumber)
	return r.Err
}

func (r *Recorder) OnLowStock(_ context.Context, product *models.Product, totalAvailable int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LowStock[product.SKU] = totalAvailable
	r.LowStockAlerts++
	return r.Err
}

func (r *Recorder) OnCreditLimitWarning(_ context.Context, customer *models.Customer, utilization decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreditWarnings[customer.Name] = utilization
	return r.Err
}

func (r *Recorder) LowStockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LowStockAlerts
}

func (r *Recorder) LowStockFor(sku string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.LowStock[sku]
	return v, ok
}
