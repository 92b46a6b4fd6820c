package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

type LineInput struct {
	UnitPrice decimal.Decimal
	Quantity  int
	TaxRate   decimal.Decimal
	Discount  Discount
}

type LineQuote struct {
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Gross          decimal.Decimal `json:"gross"`
	DiscountType   DiscountKind    `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

type Quote struct {
	Lines                 []LineQuote     `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountType          DiscountKind    `json:"discount_type,omitempty"`
	DiscountValue         decimal.Decimal `json:"discount_value"`
	OrderDiscount         decimal.Decimal `json:"order_discount"`
	SubtotalAfterDiscount decimal.Decimal `json:"subtotal_after_discount"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	Total                 decimal.Decimal `json:"total_amount"`
}

// QuoteLine prices one line: the discount comes off the gross amount and tax
// is charged on what remains.
func QuoteLine(in LineInput) (LineQuote, error) {
	if in.Quantity <= 0 {
		return LineQuote{}, apperrors.ErrInvalidInput.Withf("quantity must be positive, got %d", in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return LineQuote{}, apperrors.ErrInvalidInput.Withf("unit price must not be negative, got %s", in.UnitPrice)
	}
	if in.TaxRate.IsNegative() {
		return LineQuote{}, apperrors.ErrInvalidInput.Withf("tax rate must not be negative, got %s", in.TaxRate)
	}
	if err := in.Discount.Validate(); err != nil {
		return LineQuote{}, err
	}

	gross := Round(in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))))
	discount := in.Discount.Amount(gross)
	subtotal := gross.Sub(discount)
	tax := Round(subtotal.Mul(in.TaxRate).Div(hundred))

	return LineQuote{
		UnitPrice:      in.UnitPrice,
		Quantity:       in.Quantity,
		Gross:          gross,
		DiscountType:   in.Discount.Kind,
		DiscountValue:  in.Discount.Value,
		DiscountAmount: discount,
		Subtotal:       subtotal,
		TaxRate:        in.TaxRate,
		TaxAmount:      tax,
		Total:          subtotal.Add(tax),
	}, nil
}

// Aggregate totals already priced lines. The order discount reduces the
// subtotal only; tax stays as computed per line.
func Aggregate(lines []LineQuote, orderDiscount Discount) (*Quote, error) {
	if err := orderDiscount.Validate(); err != nil {
		return nil, err
	}

	subtotal, tax := decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal)
		tax = tax.Add(l.TaxAmount)
	}
	discount := orderDiscount.Amount(subtotal)
	after := subtotal.Sub(discount)

	return &Quote{
		Lines:                 lines,
		Subtotal:              subtotal,
		DiscountType:          orderDiscount.Kind,
		DiscountValue:         orderDiscount.Value,
		OrderDiscount:         discount,
		SubtotalAfterDiscount: after,
		TaxAmount:             tax,
		Total:                 after.Add(tax),
	}, nil
}

// QuoteOrder prices every line and aggregates them.
func QuoteOrder(lines []LineInput, orderDiscount Discount) (*Quote, error) {
	if len(lines) == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("order has no items")
	}
	quotes := make([]LineQuote, 0, len(lines))
	for i, in := range lines {
		q, err := QuoteLine(in)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		quotes = append(quotes, q)
	}
	return Aggregate(quotes, orderDiscount)
}

// FormatMoney renders amount as "<symbol> 1,234.50 /=".
func FormatMoney(symbol string, amount decimal.Decimal) string {
	s := Round(amount).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return symbol + " " + sign + b.String() + "." + frac + " /="
}
