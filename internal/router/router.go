package router

import (
	"database/sql"

	"pos_sync_backend/internal/handlers"
	"pos_sync_backend/internal/middleware"
	"pos_sync_backend/internal/repositories"
	"pos_sync_backend/internal/services"
	"pos_sync_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, db *sql.DB) {
	// Initialize Repositories
	productRepo := repositories.NewProductRepository(db)
	stockRepo := repositories.NewStockRepository(db)
	stockEventRepo := repositories.NewStockEventRepository(db)
	deviceRepo := repositories.NewDeviceRepository(db)

	// Initialize Services
	inventoryService := services.NewInventoryService(productRepo, stockRepo, stockEventRepo, db)
	productService := services.NewProductService(productRepo, stockRepo, db)
	deviceAuthService := services.NewDeviceAuthService(deviceRepo, db, utils.DefaultDeviceTokenTTL)

	// Initialize Handlers
	inventoryEventHandler := handlers.NewInventoryEventHandler(inventoryService)
	productHandler := handlers.NewProductHandler(productService)
	deviceAuthHandler := handlers.NewDeviceAuthHandler(deviceAuthService)

	apiV1 := engine.Group("/api/v1")

	// Device registration and token exchange are the only unauthenticated
	// routes; everything else requires a device bearer token.
	SetupDeviceAuthRoutes(apiV1.Group("/devices"), deviceAuthHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.DeviceAuthMiddleware())
	{
		SetupInventoryEventRoutes(authenticated, inventoryEventHandler)
		SetupProductRoutes(authenticated, productHandler)
	}
}
