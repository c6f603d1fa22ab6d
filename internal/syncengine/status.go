package syncengine

import (
	"context"
	"time"

	"pos_sync_backend/internal/models"
)

// Diagnostics is the status feed detail exposed to the UI layer.
type Diagnostics struct {
	Status          string     `json:"status"`
	PendingCount    int        `json:"pending_count"`
	ConflictCount   int        `json:"conflict_count"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	LastRetryAt     *time.Time `json:"last_retry_at,omitempty"`
	RetryCount      int        `json:"retry_count"`
	LastError       *string    `json:"last_error,omitempty"`
	LastErrorDetail *string    `json:"last_error_detail,omitempty"`
}

// GetStatus derives the coarse status for the UI: offline beats
// everything, then conflict, then syncing, then the last settled status.
func (e *Engine) GetStatus(ctx context.Context) (string, error) {
	if !e.conn.Online() {
		return models.SyncStatusOffline, nil
	}

	conflictCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusConflict)
	if err != nil {
		return "", err
	}
	if conflictCount > 0 {
		return models.SyncStatusConflict, nil
	}

	pendingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusPending)
	if err != nil {
		return "", err
	}
	syncingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusSyncing)
	if err != nil {
		return "", err
	}
	if pendingCount+syncingCount > 0 {
		return models.SyncStatusSyncing, nil
	}

	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return "", err
	}
	return state.Status, nil
}

// GetPendingCount returns how many events still await confirmation.
func (e *Engine) GetPendingCount(ctx context.Context) (int, error) {
	pendingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusPending)
	if err != nil {
		return 0, err
	}
	syncingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusSyncing)
	if err != nil {
		return 0, err
	}
	return pendingCount + syncingCount, nil
}

// GetConflicts lists the events awaiting explicit human resolution.
func (e *Engine) GetConflicts(ctx context.Context) ([]models.QueuedEvent, error) {
	return e.store.ListEventsByStatuses(ctx, models.EventStatusConflict)
}

// GetProducts returns the optimistic local mirror for display.
func (e *Engine) GetProducts(ctx context.Context) ([]models.CachedProduct, error) {
	return e.store.ListProducts(ctx)
}

// GetDiagnostics assembles the full status feed.
func (e *Engine) GetDiagnostics(ctx context.Context) (*Diagnostics, error) {
	status, err := e.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	pendingCount, err := e.GetPendingCount(ctx)
	if err != nil {
		return nil, err
	}
	conflictCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusConflict)
	if err != nil {
		return nil, err
	}
	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return nil, err
	}

	return &Diagnostics{
		Status:          status,
		PendingCount:    pendingCount,
		ConflictCount:   conflictCount,
		LastSyncAt:      state.LastSyncAt,
		LastAttemptAt:   state.LastAttemptAt,
		LastRetryAt:     state.LastRetryAt,
		RetryCount:      state.RetryCount,
		LastError:       state.LastError,
		LastErrorDetail: state.LastErrorDetail,
	}, nil
}
