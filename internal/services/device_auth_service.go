package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/repositories"
	"pos_sync_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid device credentials")
	ErrDeviceNotFound     = errors.New("device not found")
)

// RegisterDeviceRequest registers a new POS terminal.
type RegisterDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Label    string `json:"label" binding:"required"`
	APIKey   string `json:"api_key" binding:"required,min=16"`
}

// DeviceAuthService issues bearer tokens to registered devices. The
// inventory-event procedure is only callable with such a token.
type DeviceAuthService interface {
	RegisterDevice(req RegisterDeviceRequest) (*models.Device, error)
	IssueToken(req models.DeviceTokenRequest) (*models.DeviceTokenResponse, error)
}

type deviceAuthService struct {
	deviceRepo repositories.DeviceRepository
	db         *sql.DB
	tokenTTL   time.Duration
}

// NewDeviceAuthService creates a new instance of DeviceAuthService.
func NewDeviceAuthService(dr repositories.DeviceRepository, db *sql.DB, tokenTTL time.Duration) DeviceAuthService {
	return &deviceAuthService{deviceRepo: dr, db: db, tokenTTL: tokenTTL}
}

func (s *deviceAuthService) RegisterDevice(req RegisterDeviceRequest) (*models.Device, error) {
	if utils.IsEmpty(req.DeviceID) {
		return nil, fmt.Errorf("%w: device_id cannot be empty", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.APIKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash device API key: %w", err)
	}

	device := models.Device{
		ID:         strings.TrimSpace(req.DeviceID),
		Label:      strings.TrimSpace(req.Label),
		APIKeyHash: string(hash),
	}
	if err := s.deviceRepo.CreateDevice(s.db, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *deviceAuthService) IssueToken(req models.DeviceTokenRequest) (*models.DeviceTokenResponse, error) {
	device, err := s.deviceRepo.GetDeviceByID(req.DeviceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Same error as a bad key so callers cannot probe device IDs.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(device.APIKeyHash), []byte(req.APIKey)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := utils.GenerateDeviceToken(device.ID, device.Label, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue device token: %w", err)
	}

	return &models.DeviceTokenResponse{AccessToken: token, ExpiresAt: expiresAt}, nil
}
