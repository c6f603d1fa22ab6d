package models

import "time"

// Queued-event lifecycle statuses on the client.
const (
	EventStatusPending  = "pending"
	EventStatusSyncing  = "syncing"
	EventStatusSynced   = "synced"
	EventStatusConflict = "conflict"
)

// Coarse sync statuses surfaced to the UI.
const (
	SyncStatusOffline  = "offline"
	SyncStatusSyncing  = "syncing"
	SyncStatusSynced   = "synced"
	SyncStatusConflict = "conflict"
)

// CachedProduct is the device-local mirror of a Product plus its displayed
// stock. Stock equals the last confirmed authoritative quantity plus the
// deltas of all not-yet-confirmed local events for the product.
type CachedProduct struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SKU       string    `json:"sku" db:"sku"`
	Category  *string   `json:"category,omitempty" db:"category"`
	Size      *string   `json:"size,omitempty" db:"size"`
	Color     *string   `json:"color,omitempty" db:"color"`
	Price     float64   `json:"price" db:"price"`
	Cost      *float64  `json:"cost,omitempty" db:"cost"`
	ImageURL  *string   `json:"image_url,omitempty" db:"image_url"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// QueuedEvent is an intended inventory mutation waiting for (or rejected
// by) the remote stock authority. LocalID is unique per device and forms
// the idempotency key together with DeviceID.
type QueuedEvent struct {
	LocalID   string    `json:"local_id" db:"local_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	EventType string    `json:"event_type" db:"event_type"`
	QtyChange int       `json:"qty_change" db:"qty_change"`
	Note      *string   `json:"note,omitempty" db:"note"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	Status    string    `json:"status" db:"status"`
	LastError *string   `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SyncState is the singleton bookkeeping record for the device's sync
// engine. It is created on first use and overwritten continuously.
type SyncState struct {
	Status          string     `json:"status" db:"status"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	LastRetryAt     *time.Time `json:"last_retry_at,omitempty" db:"last_retry_at"`
	RetryCount      int        `json:"retry_count" db:"retry_count"`
	LastError       *string    `json:"last_error,omitempty" db:"last_error"`
	LastErrorDetail *string    `json:"last_error_detail,omitempty" db:"last_error_detail"`
}
