package models

import "time"

// Event types for inventory mutations. The set is closed; everything
// else is rejected at validation.
const (
	EventTypeSale       = "sale"
	EventTypeRestock    = "restock"
	EventTypeAdjustment = "adjustment"
)

// IsValidEventType reports whether t is one of the supported event kinds.
func IsValidEventType(t string) bool {
	switch t {
	case EventTypeSale, EventTypeRestock, EventTypeAdjustment:
		return true
	}
	return false
}

// Outcome statuses persisted by the stock authority.
const (
	ApplyStatusApplied  = "applied"
	ApplyStatusConflict = "conflict"
)

// StockEvent is an immutable audit row recorded for every apply attempt,
// whether it was applied or rejected as a conflict.
// (device_id, local_event_id) is unique and is the idempotency boundary.
type StockEvent struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id" binding:"required"`
	DeviceID     *string   `json:"device_id,omitempty" db:"device_id"`
	LocalEventID *string   `json:"local_event_id,omitempty" db:"local_event_id"`
	EventType    string    `json:"event_type" db:"event_type" binding:"required"`
	QtyChange    int       `json:"qty_change" db:"qty_change" binding:"required"`
	Status       string    `json:"status" db:"status"` // applied | conflict
	Note         *string   `json:"note,omitempty" db:"note"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ApplyInventoryEventRequest is the wire payload for the stock-mutation
// procedure. DeviceID and LocalEventID are optional; callers that supply
// both get idempotent replay on retries.
type ApplyInventoryEventRequest struct {
	ProductID    int64   `json:"product_id" binding:"required"`
	EventType    string  `json:"event_type" binding:"required"`
	QtyChange    int     `json:"qty_change" binding:"required"`
	Note         *string `json:"note,omitempty"`
	DeviceID     *string `json:"device_id,omitempty"`
	LocalEventID *string `json:"local_event_id,omitempty"`
}

// ApplyInventoryEventResult is the stored outcome of one apply attempt.
// Replays of the same (device_id, local_event_id) return this unchanged.
type ApplyInventoryEventResult struct {
	EventID      int64   `json:"event_id"`
	NewStock     int     `json:"new_stock"`
	Status       string  `json:"status"` // applied | conflict
	ErrorMessage *string `json:"error_message,omitempty"`
}
