package router

import (
	"pos_sync_backend/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupDeviceAuthRoutes wires device registration and token exchange.
func SetupDeviceAuthRoutes(group *gin.RouterGroup, deviceAuthHandler *handlers.DeviceAuthHandler) {
	group.POST("/register", deviceAuthHandler.RegisterDevice)
	group.POST("/token", deviceAuthHandler.IssueToken)
}

// SetupInventoryEventRoutes wires the stock-mutation procedure and the bulk
// reads clients use for cache refreshes.
func SetupInventoryEventRoutes(group *gin.RouterGroup, inventoryEventHandler *handlers.InventoryEventHandler) {
	group.POST("/inventory-events", inventoryEventHandler.ApplyInventoryEvent)
	group.GET("/stock-events", inventoryEventHandler.GetStockEvents)
	group.GET("/stock-snapshots", inventoryEventHandler.GetStockSnapshots)
}

// SetupProductRoutes wires catalog CRUD.
func SetupProductRoutes(group *gin.RouterGroup, productHandler *handlers.ProductHandler) {
	products := group.Group("/products")
	{
		products.POST("", productHandler.CreateProduct)
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProductByID)
		products.PUT("/:id", productHandler.UpdateProduct)
		products.DELETE("/:id", productHandler.DeleteProduct)
	}
}
