package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/repositories"
	"pos_sync_backend/internal/services"
	"pos_sync_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// InventoryEventHandler holds the inventory service.
type InventoryEventHandler struct {
	inventoryService services.InventoryService
}

// NewInventoryEventHandler creates a new InventoryEventHandler.
func NewInventoryEventHandler(is services.InventoryService) *InventoryEventHandler {
	return &InventoryEventHandler{inventoryService: is}
}

// ApplyInventoryEvent handles the idempotent stock-mutation procedure.
// The device identity from the token overrides whatever the body claims,
// so one device cannot replay another device's idempotency keys.
func (h *InventoryEventHandler) ApplyInventoryEvent(c *gin.Context) {
	var req models.ApplyInventoryEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "ApplyInventoryEvent: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	if deviceID, exists := c.Get("deviceID"); exists {
		if id, ok := deviceID.(string); ok && id != "" {
			req.DeviceID = &id
		}
	}

	result, err := h.inventoryService.ApplyInventoryEvent(req)
	if err != nil {
		utils.LogError(err, "ApplyInventoryEvent: Error from inventoryService.ApplyInventoryEvent")
		if errors.Is(err, services.ErrProductNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Product not found.", err.Error()))
		} else if errors.Is(err, services.ErrValidation) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid inventory event.", err.Error()))
		} else if errors.Is(err, repositories.ErrSchemaMissing) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeConfigError, "Server database schema is missing or out of date.", "Schema error"))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to apply inventory event.", "Internal error"))
		}
		return
	}

	// Conflict outcomes are a successful procedure call; the status travels
	// in the body, not as an HTTP error.
	c.JSON(http.StatusOK, result)
}

// GetStockSnapshots returns the full product_id -> quantity map used by
// clients for cache refreshes.
func (h *InventoryEventHandler) GetStockSnapshots(c *gin.Context) {
	snapshot, err := h.inventoryService.GetAllStockSnapshots()
	if err != nil {
		utils.LogError(err, "GetStockSnapshots: Error from inventoryService.GetAllStockSnapshots")
		if errors.Is(err, repositories.ErrSchemaMissing) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeConfigError, "Server database schema is missing or out of date.", "Schema error"))
			return
		}
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch stock snapshots.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetStockEvents handles fetching the audit log with optional filters.
func (h *InventoryEventHandler) GetStockEvents(c *gin.Context) {
	var productID *int64
	var deviceID, status *string

	if productIDStr := c.Query("product_id"); productIDStr != "" {
		id, err := strconv.ParseInt(productIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid product_id format.", err.Error()))
			return
		}
		productID = &id
	}
	if deviceIDStr := c.Query("device_id"); deviceIDStr != "" {
		deviceID = &deviceIDStr
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status = &statusStr
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	events, totalCount, err := h.inventoryService.GetStockEvents(productID, deviceID, status, page, pageSize)
	if err != nil {
		utils.LogError(err, "GetStockEvents: Error from inventoryService.GetStockEvents")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch stock events.", "Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":      events,
		"total_count": totalCount,
		"page":        page,
		"page_size":   pageSize,
	})
}
