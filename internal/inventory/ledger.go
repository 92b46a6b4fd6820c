// Package inventory owns the per (product, warehouse) stock counters, the
// reservations that claim them and the transfers that move them.
package inventory

import (
	"context"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

// adjust applies both deltas to inv, re-derives the available quantity and
// persists the row. inv must have come from tx.LockInventory. Sufficiency is
// the caller's concern; a result that breaks the counter invariant is refused
// and inv is left untouched.
func adjust(ctx context.Context, tx repository.Tx, inv *models.Inventory, dQuantity, dReserved int) error {
	next := *inv
	next.Quantity += dQuantity
	next.ReservedQuantity += dReserved
	next.AvailableQuantity = next.Quantity - next.ReservedQuantity

	if next.Quantity < 0 || !next.Consistent() {
		return apperrors.ErrInvariantViolation.Withf(
			"product %s warehouse %s: quantity=%d reserved=%d available=%d",
			inv.ProductID, inv.WarehouseID, next.Quantity, next.ReservedQuantity, next.AvailableQuantity)
	}
	if err := tx.SaveInventory(ctx, &next); err != nil {
		return err
	}
	*inv = next
	return nil
}
