package models

import "time"

// Device is a registered point-of-sale terminal allowed to call the
// inventory-event procedure. APIKeyHash is a bcrypt hash; the plaintext
// key is only ever exchanged for a JWT.
type Device struct {
	ID         string    `json:"id" db:"id"`
	Label      string    `json:"label" db:"label"`
	APIKeyHash string    `json:"-" db:"api_key_hash"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DeviceTokenRequest exchanges a device credential for an access token.
type DeviceTokenRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
}

// DeviceTokenResponse carries the issued bearer token.
type DeviceTokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
