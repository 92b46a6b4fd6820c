package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/orders"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

type OrderController struct {
	orders *orders.OrderService
}

func NewOrderController(orderService *orders.OrderService) *OrderController {
	registerValidators()
	return &OrderController{orders: orderService}
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req orders.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := oc.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (oc *OrderController) CalculateTotal(c *gin.Context) {
	var req orders.CalculateTotalRequest
	if !bindJSON(c, &req) {
		return
	}
	quote, err := oc.orders.CalculateTotal(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders accepts optional customer_id and status filters.
func (oc *OrderController) ListOrders(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	filter := repository.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Error(apperrors.ErrInvalidInput.Withf("customer_id must be a UUID"))
			return
		}
		filter.CustomerID = &id
	}

	result, err := oc.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (oc *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := oc.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) Invoice(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := oc.orders.Invoice(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
