package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Harrison-Muraya/L-SalesPro/internal/pricing"
)

var registerOnce sync.Once

// registerValidators adds the discount_type rule to gin's validator and makes
// field errors use JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("discount_type", func(fl validator.FieldLevel) bool {
			switch pricing.DiscountKind(fl.Field().String()) {
			case pricing.KindNone, pricing.KindPercentage, pricing.KindFixed:
				return true
			}
			return false
		})
	})
}

// describeBindError turns validator errors into "field rule" sentences and
// leaves other errors (malformed JSON, bad UUIDs) as they are.
func describeBindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "discount_type":
			msgs = append(msgs, field+" must be percentage or fixed")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
