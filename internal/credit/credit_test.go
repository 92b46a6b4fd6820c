package credit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidateBoundary(t *testing.T) {
	c := NewController("KES", zap.NewNop())
	customer := &models.Customer{CreditLimit: d("500000.00"), CurrentBalance: d("120000.00")}

	assert.True(t, c.AvailableCredit(customer).Equal(d("380000.00")))
	assert.NoError(t, c.Validate(customer, d("380000.00")))

	err := c.Validate(customer, d("380000.01"))
	require.ErrorIs(t, err, apperrors.ErrCreditLimitExceeded)
	assert.Contains(t, err.Error(), "KES 380,000.00 /=")
}

func TestAvailableCreditNeverNegative(t *testing.T) {
	c := NewController("KES", zap.NewNop())
	customer := &models.Customer{CreditLimit: d("1000"), CurrentBalance: d("1500")}

	assert.True(t, c.AvailableCredit(customer).IsZero())
	assert.ErrorIs(t, c.Validate(customer, d("0.01")), apperrors.ErrCreditLimitExceeded)
	assert.NoError(t, c.Validate(customer, decimal.Zero))
}

func TestUtilization(t *testing.T) {
	c := NewController("KES", zap.NewNop())

	assert.True(t, c.Utilization(&models.Customer{CreditLimit: d("300"), CurrentBalance: d("100")}).Equal(d("33.33")))
	assert.True(t, c.Utilization(&models.Customer{CreditLimit: decimal.Zero, CurrentBalance: d("100")}).IsZero())
}

func TestChargeAndRefund(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(time.Second)
	c := NewController("KES", zap.NewNop())

	customer := models.Customer{Name: "Acme", CreditLimit: d("1000"), CurrentBalance: d("100")}
	require.NoError(t, store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateCustomer(ctx, &customer)
	}))

	require.NoError(t, store.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockCustomer(ctx, customer.ID)
		if err != nil {
			return err
		}
		if err := c.Charge(ctx, tx, locked, d("250.50")); err != nil {
			return err
		}
		return c.Refund(ctx, tx, locked, d("50.25"))
	}))

	got, err := store.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(d("300.25")), got.CurrentBalance.String())
}
