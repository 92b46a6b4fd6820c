package pricing

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

type DiscountKind string

const (
	KindNone       DiscountKind = ""
	KindPercentage DiscountKind = "percentage"
	KindFixed      DiscountKind = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Discount is either a percentage of a base or a fixed amount capped at the
// base. The zero value applies no discount.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

func Percentage(v decimal.Decimal) Discount { return Discount{Kind: KindPercentage, Value: v} }

func Fixed(v decimal.Decimal) Discount { return Discount{Kind: KindFixed, Value: v} }

// ParseDiscount builds a Discount from its persisted form. An empty kind is no discount.
func ParseDiscount(kind string, value decimal.Decimal) (Discount, error) {
	d := Discount{Kind: DiscountKind(kind), Value: value}
	if d.Kind == KindNone {
		return Discount{}, nil
	}
	if err := d.Validate(); err != nil {
		return Discount{}, err
	}
	return d, nil
}

func (d Discount) Validate() error {
	switch d.Kind {
	case KindNone:
		return nil
	case KindPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return apperrors.ErrInvalidInput.Withf("percentage discount must be between 0 and 100, got %s", d.Value)
		}
	case KindFixed:
		if d.Value.IsNegative() {
			return apperrors.ErrInvalidInput.Withf("fixed discount must not be negative, got %s", d.Value)
		}
	default:
		return apperrors.ErrInvalidInput.Withf("unknown discount type %q", d.Kind)
	}
	return nil
}

func (d Discount) IsZero() bool { return d.Kind == KindNone }

// Amount returns the discount taken off base, rounded to 2 dp.
func (d Discount) Amount(base decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case KindPercentage:
		return Round(base.Mul(d.Value).Div(hundred))
	case KindFixed:
		return Round(decimal.Min(d.Value, base))
	default:
		return decimal.Zero
	}
}

// Round rounds half away from zero to 2 decimal places.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
