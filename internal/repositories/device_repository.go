package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos_sync_backend/internal/models"
)

// DeviceRepository defines the interface for registered POS devices.
type DeviceRepository interface {
	CreateDevice(executor SQLExecutor, device *models.Device) error
	GetDeviceByID(deviceID string) (*models.Device, error)
}

type deviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new instance of DeviceRepository.
func NewDeviceRepository(db *sql.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) CreateDevice(executor SQLExecutor, device *models.Device) error {
	query := `INSERT INTO devices (id, label, api_key_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5)`
	currentTime := time.Now()
	_, err := executor.Exec(query, device.ID, device.Label, device.APIKeyHash, currentTime, currentTime)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: device %s already registered", ErrDuplicateKey, device.ID)
		}
		return fmt.Errorf("%w: creating device %s: %v", classifySQLError(err), device.ID, err)
	}
	device.CreatedAt = currentTime
	device.UpdatedAt = currentTime
	return nil
}

func (r *deviceRepository) GetDeviceByID(deviceID string) (*models.Device, error) {
	var device models.Device
	query := `SELECT id, label, api_key_hash, created_at, updated_at FROM devices WHERE id = $1`
	err := r.db.QueryRow(query, deviceID).Scan(
		&device.ID, &device.Label, &device.APIKeyHash, &device.CreatedAt, &device.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting device %s: %v", classifySQLError(err), deviceID, err)
	}
	return &device, nil
}
