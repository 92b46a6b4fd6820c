package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harrison-Muraya/L-SalesPro/internal/controllers"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

// RegisterRoutes mounts the back-office API under /api/v1 and a /health probe.
func RegisterRoutes(r *gin.Engine, oc *controllers.OrderController, ic *controllers.InventoryController) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(apperrors.ErrorMiddleware())

	orderRoutes := api.Group("/orders")
	orderRoutes.POST("", oc.CreateOrder)
	orderRoutes.GET("", oc.ListOrders)
	orderRoutes.POST("/calculate-total", oc.CalculateTotal)
	orderRoutes.GET("/:id", oc.GetOrder)
	orderRoutes.PATCH("/:id/status", oc.UpdateStatus)
	orderRoutes.GET("/:id/invoice", oc.Invoice)

	inventoryRoutes := api.Group("/inventory")
	inventoryRoutes.POST("/reservations", ic.Reserve)
	inventoryRoutes.POST("/reservations/:reference/release", ic.Release)
	inventoryRoutes.POST("/sweep-expired", ic.Sweep)
	inventoryRoutes.POST("/transfers", ic.Transfer)
	inventoryRoutes.POST("/restock", ic.Restock)
	inventoryRoutes.GET("/low-stock", ic.LowStock)
	inventoryRoutes.GET("/products/:id", ic.ProductStock)
	inventoryRoutes.GET("/products/:id/transfers", ic.TransferHistory)
}
