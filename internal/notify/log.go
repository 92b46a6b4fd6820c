package notify

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
)

// LogNotifier writes events to the service log. It is the default backend.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) OnOrderConfirmed(_ context.Context, order *models.Order) error {
	n.logger.Info("order confirmed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return nil
}

func (n *LogNotifier) OnLowStock(_ context.Context, product *models.Product, totalAvailable int) error {
	n.logger.Warn("product low on stock",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.Int("total_available", totalAvailable),
		zap.Int("reorder_level", product.ReorderLevel))
	return nil
}

func (n *LogNotifier) OnCreditLimitWarning(_ context.Context, customer *models.Customer, utilization decimal.Decimal) error {
	n.logger.Warn("customer close to credit limit",
		zap.String("customer_id", customer.ID.String()),
		zap.String("utilization_percent", utilization.StringFixed(2)),
		zap.String("credit_limit", customer.CreditLimit.StringFixed(2)))
	return nil
}
