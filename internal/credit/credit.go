// Package credit owns customer credit exposure. Controller is the only code
// that changes Customer.CurrentBalance.
package credit

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/pricing"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

type Controller struct {
	currency string
	logger   *zap.Logger
}

func NewController(currencySymbol string, logger *zap.Logger) *Controller {
	return &Controller{currency: currencySymbol, logger: logger}
}

// AvailableCredit is max(0, limit - balance).
func (c *Controller) AvailableCredit(customer *models.Customer) decimal.Decimal {
	return decimal.Max(decimal.Zero, customer.CreditLimit.Sub(customer.CurrentBalance))
}

// Validate fails when total is strictly greater than the available credit.
func (c *Controller) Validate(customer *models.Customer, total decimal.Decimal) error {
	available := c.AvailableCredit(customer)
	if total.GreaterThan(available) {
		return apperrors.ErrCreditLimitExceeded.Withf("available %s, order total %s",
			pricing.FormatMoney(c.currency, available),
			pricing.FormatMoney(c.currency, total))
	}
	return nil
}

// Charge adds amount to the balance of a customer locked in tx.
func (c *Controller) Charge(ctx context.Context, tx repository.Tx, customer *models.Customer, amount decimal.Decimal) error {
	return c.apply(ctx, tx, customer, amount)
}

// Refund takes amount off the balance of a customer locked in tx.
func (c *Controller) Refund(ctx context.Context, tx repository.Tx, customer *models.Customer, amount decimal.Decimal) error {
	return c.apply(ctx, tx, customer, amount.Neg())
}

func (c *Controller) apply(ctx context.Context, tx repository.Tx, customer *models.Customer, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	before := customer.CurrentBalance
	customer.CurrentBalance = pricing.Round(before.Add(delta))
	if err := tx.SaveCustomer(ctx, customer); err != nil {
		customer.CurrentBalance = before
		return err
	}
	c.logger.Debug("customer balance updated",
		zap.String("customer_id", customer.ID.String()),
		zap.String("delta", delta.String()),
		zap.String("balance", customer.CurrentBalance.String()))
	return nil
}

// Utilization is balance / limit as a percentage, 0 for a zero limit.
func (c *Controller) Utilization(customer *models.Customer) decimal.Decimal {
	if !customer.CreditLimit.IsPositive() {
		return decimal.Zero
	}
	return pricing.Round(customer.CurrentBalance.Div(customer.CreditLimit).Mul(decimal.NewFromInt(100)))
}
