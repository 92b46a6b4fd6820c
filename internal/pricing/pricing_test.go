package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteLineWithoutDiscount(t *testing.T) {
	q, err := QuoteLine(LineInput{UnitPrice: d("4500.00"), Quantity: 1, TaxRate: d("16")})
	require.NoError(t, err)

	assert.True(t, q.TaxAmount.Equal(d("720.00")), q.TaxAmount.String())
	assert.True(t, q.Total.Equal(d("5220.00")), q.Total.String())
	assert.True(t, q.DiscountAmount.IsZero())
}

func TestOrderDiscountReducesSubtotalOnly(t *testing.T) {
	lines := []LineQuote{
		{Subtotal: d("9000.00"), TaxAmount: d("1440.00")},
		{Subtotal: d("6000.00"), TaxAmount: d("720.00")},
	}
	q, err := Aggregate(lines, Percentage(d("10")))
	require.NoError(t, err)

	assert.True(t, q.Subtotal.Equal(d("15000.00")))
	assert.True(t, q.OrderDiscount.Equal(d("1500.00")))
	assert.True(t, q.TaxAmount.Equal(d("2160.00")))
	assert.True(t, q.Total.Equal(d("15660.00")), q.Total.String())
}

func TestLineDiscountIsTaxedAfter(t *testing.T) {
	q, err := QuoteLine(LineInput{UnitPrice: d("5000"), Quantity: 3, TaxRate: d("16"), Discount: Percentage(d("10"))})
	require.NoError(t, err)

	assert.True(t, q.Gross.Equal(d("15000")))
	assert.True(t, q.DiscountAmount.Equal(d("1500")))
	assert.True(t, q.Subtotal.Equal(d("13500")))
	assert.True(t, q.TaxAmount.Equal(d("2160")))
	assert.True(t, q.Total.Equal(d("15660")))
}

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		base     string
		want     string
	}{
		{"none", Discount{}, "100", "0"},
		{"percentage rounds half up", Percentage(d("12.5")), "0.20", "0.03"},
		{"fixed below base", Fixed(d("250")), "1000", "250"},
		{"fixed capped at base", Fixed(d("1500")), "1000", "1000"},
		{"full percentage", Percentage(d("100")), "80.40", "80.40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.discount.Amount(d(tt.base))
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}

func TestInvalidDiscounts(t *testing.T) {
	for _, disc := range []Discount{
		Percentage(d("100.01")),
		Percentage(d("-1")),
		Fixed(d("-0.01")),
		{Kind: "bogus", Value: d("1")},
	} {
		assert.ErrorIs(t, disc.Validate(), apperrors.ErrInvalidInput, "%+v", disc)
	}

	_, err := ParseDiscount("percent", d("5"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	none, err := ParseDiscount("", d("5"))
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestQuoteOrderValidatesLines(t *testing.T) {
	_, err := QuoteOrder(nil, Discount{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = QuoteOrder([]LineInput{{UnitPrice: d("10"), Quantity: 0, TaxRate: d("16")}}, Discount{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	q, err := QuoteOrder([]LineInput{
		{UnitPrice: d("4500"), Quantity: 1, TaxRate: d("16")},
		{UnitPrice: d("1000"), Quantity: 2, TaxRate: d("0"), Discount: Fixed(d("5000"))},
	}, Fixed(d("220")))
	require.NoError(t, err)
	assert.True(t, q.Lines[1].Subtotal.IsZero())
	assert.True(t, q.Subtotal.Equal(d("4500")))
	assert.True(t, q.Total.Equal(d("5000")), q.Total.String())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "KES 1,234,567.50 /=", FormatMoney("KES", d("1234567.5")))
	assert.Equal(t, "KES 0.00 /=", FormatMoney("KES", decimal.Zero))
	assert.Equal(t, "KES 999.99 /=", FormatMoney("KES", d("999.994")))
	assert.Equal(t, "KES -1,000.00 /=", FormatMoney("KES", d("-1000")))
}
