package handlers

import (
	"errors"
	"net/http"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/repositories"
	"pos_sync_backend/internal/services"
	"pos_sync_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DeviceAuthHandler holds the device auth service.
type DeviceAuthHandler struct {
	deviceAuthService services.DeviceAuthService
}

// NewDeviceAuthHandler creates a new DeviceAuthHandler.
func NewDeviceAuthHandler(das services.DeviceAuthService) *DeviceAuthHandler {
	return &DeviceAuthHandler{deviceAuthService: das}
}

// RegisterDevice handles registering a new POS terminal.
func (h *DeviceAuthHandler) RegisterDevice(c *gin.Context) {
	var req services.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "RegisterDevice: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	device, err := h.deviceAuthService.RegisterDevice(req)
	if err != nil {
		utils.LogError(err, "RegisterDevice: Error from deviceAuthService.RegisterDevice")
		if errors.Is(err, services.ErrValidation) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid device registration.", err.Error()))
		} else if errors.Is(err, repositories.ErrDuplicateKey) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Device already registered.", err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to register device.", "Internal error"))
		}
		return
	}
	c.JSON(http.StatusCreated, device)
}

// IssueToken exchanges device credentials for a bearer token.
func (h *DeviceAuthHandler) IssueToken(c *gin.Context) {
	var req models.DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	token, err := h.deviceAuthService.IssueToken(req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid device credentials.", ""))
		} else {
			utils.LogError(err, "IssueToken: Error from deviceAuthService.IssueToken")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to issue token.", "Internal error"))
		}
		return
	}
	c.JSON(http.StatusOK, token)
}
