package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/pricing"
)

type Invoice struct {
	OrderNumber string             `json:"order_number"`
	OrderDate   string             `json:"order_date"`
	Status      models.OrderStatus `json:"status"`
	Customer    InvoiceCustomer    `json:"customer"`
	Items       []InvoiceLine      `json:"items"`
	Summary     InvoiceSummary     `json:"summary"`
	CreatedBy   string             `json:"created_by"`
}

type InvoiceCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type InvoiceLine struct {
	ProductName    string            `json:"product_name"`
	SKU            string            `json:"sku"`
	Quantity       int               `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	TaxRate        decimal.Decimal   `json:"tax_rate"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	Total          decimal.Decimal   `json:"total"`
	Formatted      map[string]string `json:"formatted"`
}

type InvoiceSummary struct {
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Formatted      map[string]string `json:"formatted"`
}

// Invoice renders a stored order for printing. Amounts are the persisted ones;
// nothing is re-priced.
func (s *OrderService) Invoice(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	money := func(d decimal.Decimal) string { return pricing.FormatMoney(s.cfg.CurrencySymbol, d) }

	inv := &Invoice{
		OrderNumber: order.OrderNumber,
		OrderDate:   order.CreatedAt.Format("2006-01-02"),
		Status:      order.Status,
		Customer:    InvoiceCustomer{Name: customer.Name, Email: customer.Email},
		Items:       make([]InvoiceLine, 0, len(order.Items)),
		Summary: InvoiceSummary{
			Subtotal:       order.Subtotal,
			DiscountAmount: order.DiscountAmount,
			TaxAmount:      order.TaxAmount,
			TotalAmount:    order.TotalAmount,
			Formatted: map[string]string{
				"subtotal":        money(order.Subtotal),
				"discount_amount": money(order.DiscountAmount),
				"tax_amount":      money(order.TaxAmount),
				"total_amount":    money(order.TotalAmount),
			},
		},
		CreatedBy: "System",
	}
	if order.CreatedBy != nil {
		inv.CreatedBy = order.CreatedBy.String()
	}

	for _, item := range order.Items {
		p := products[item.ProductID]
		inv.Items = append(inv.Items, InvoiceLine{
			ProductName:    p.Name,
			SKU:            p.SKU,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			Subtotal:       item.Subtotal,
			TaxRate:        item.TaxRate,
			TaxAmount:      item.TaxAmount,
			Total:          item.Total,
			Formatted: map[string]string{
				"unit_price": money(item.UnitPrice),
				"total":      money(item.Total),
			},
		})
	}
	return inv, nil
}
