package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Harrison-Muraya/L-SalesPro/internal/inventory"
)

type InventoryController struct {
	stock        *inventory.StockService
	reservations *inventory.ReservationService
	transfers    *inventory.TransferService
}

func NewInventoryController(stock *inventory.StockService, reservations *inventory.ReservationService, transfers *inventory.TransferService) *InventoryController {
	return &InventoryController{stock: stock, reservations: reservations, transfers: transfers}
}

// reserveRequest holds stock outside any order. Order reservations are only
// made by order creation.
type reserveRequest struct {
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required"`
}

type transferRequest struct {
	ProductID       uuid.UUID  `json:"product_id" binding:"required"`
	FromWarehouseID uuid.UUID  `json:"from_warehouse_id" binding:"required"`
	ToWarehouseID   uuid.UUID  `json:"to_warehouse_id" binding:"required"`
	Quantity        int        `json:"quantity" binding:"required"`
	RequestedBy     *uuid.UUID `json:"requested_by,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

type restockRequest struct {
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required"`
}

func (ic *InventoryController) Reserve(c *gin.Context) {
	var req reserveRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ic.reservations.Reserve(c.Request.Context(), inventory.ReserveRequest{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ic *InventoryController) Release(c *gin.Context) {
	reference := c.Param("reference")
	if err := ic.reservations.Release(c.Request.Context(), reference); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reference": reference, "status": "released"})
}

// Sweep expires stale reservations on demand, next to the scheduled sweep.
func (ic *InventoryController) Sweep(c *gin.Context) {
	n, err := ic.reservations.SweepExpired(c.Request.Context(), time.Now())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

func (ic *InventoryController) Transfer(c *gin.Context) {
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	transfer, err := ic.transfers.Transfer(c.Request.Context(), inventory.TransferRequest{
		ProductID:       req.ProductID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		RequestedBy:     req.RequestedBy,
		Notes:           req.Notes,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, transfer)
}

func (ic *InventoryController) TransferHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	history, err := ic.transfers.History(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": history})
}

func (ic *InventoryController) Restock(c *gin.Context) {
	var req restockRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := ic.stock.Restock(c.Request.Context(), req.ProductID, req.WarehouseID, req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (ic *InventoryController) ProductStock(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	report, err := ic.stock.ProductStock(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (ic *InventoryController) LowStock(c *gin.Context) {
	report, err := ic.stock.LowStockReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": report})
}
