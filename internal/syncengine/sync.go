package syncengine

import (
	"context"
	"errors"
	"time"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/pkg/utils"
)

// User-facing error messages stored in SyncState during failed passes.
const (
	retryMessage       = "Could not reach the inventory server. Changes are saved and will sync automatically."
	configErrorMessage = "The inventory server is misconfigured. Contact support before retrying."
)

// classifyError maps a transport/server failure to a stable user-facing
// message plus the technical detail string kept for diagnostics.
func classifyError(err error) (userMessage, detail string) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Code == utils.ErrCodeConfigError {
		return configErrorMessage, remoteErr.Error()
	}
	return retryMessage, err.Error()
}

// runSyncPass executes one reconciliation pass: drain the queue, refresh
// the cache, recompute status, prune. Transport failures revert events to
// pending; they are retried on every subsequent pass with no backoff and
// no cap.
func (e *Engine) runSyncPass(ctx context.Context) (SyncResult, error) {
	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	now := time.Now()
	state.Status = models.SyncStatusSyncing
	state.LastAttemptAt = &now
	if err := e.store.SaveSyncState(ctx, state); err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{}
	if e.conn.Online() {
		events, err := e.store.ListEventsByStatuses(ctx, models.EventStatusPending, models.EventStatusSyncing)
		if err != nil {
			return SyncResult{}, err
		}

		for _, event := range events {
			if err := e.deliverEvent(ctx, event, state); err == nil {
				result.Synced++
			}
		}

		if err := e.RefreshCache(ctx); err != nil {
			utils.LogError(err, "Sync: cache refresh failed")
			userMessage, detail := classifyError(err)
			e.recordRetry(ctx, state, userMessage, detail)
		}
	}

	finalState, conflicts, err := e.recomputeStatus(ctx)
	if err != nil {
		return result, err
	}
	result.Conflicts = conflicts

	if _, err := e.store.PruneSyncedEvents(ctx, syncedEventRetention); err != nil {
		utils.LogError(err, "Sync: pruning synced events failed")
	}

	utils.LogDebug("Sync pass finished", map[string]interface{}{
		"synced":    result.Synced,
		"conflicts": result.Conflicts,
		"status":    finalState.Status,
	})
	return result, nil
}

// deliverEvent pushes one queued event to the authority. Returns nil only
// when the event reached the synced state.
func (e *Engine) deliverEvent(ctx context.Context, event models.QueuedEvent, state *models.SyncState) error {
	if err := e.store.UpdateEventStatus(ctx, event.LocalID, models.EventStatusSyncing, nil); err != nil {
		return err
	}

	req := models.ApplyInventoryEventRequest{
		ProductID:    event.ProductID,
		EventType:    event.EventType,
		QtyChange:    event.QtyChange,
		Note:         event.Note,
		DeviceID:     &event.DeviceID,
		LocalEventID: &event.LocalID,
	}

	res, err := e.remote.ApplyInventoryEvent(ctx, req)
	if err != nil {
		// Transport or server failure: back to pending for the next pass.
		userMessage, detail := classifyError(err)
		utils.LogWarn("Sync: delivery failed, event stays queued", map[string]interface{}{
			"local_id": event.LocalID,
			"detail":   detail,
		})
		if statusErr := e.store.UpdateEventStatus(ctx, event.LocalID, models.EventStatusPending, &userMessage); statusErr != nil {
			utils.LogError(statusErr, "Sync: failed to revert event to pending")
		}
		e.recordRetry(ctx, state, userMessage, detail)
		return err
	}

	if res.Status == models.ApplyStatusConflict {
		// Terminal until a human resolves it. The optimistic delta stays
		// applied locally pending that resolution.
		if err := e.store.UpdateEventStatus(ctx, event.LocalID, models.EventStatusConflict, res.ErrorMessage); err != nil {
			return err
		}
		return errors.New("event rejected as conflict")
	}

	// Authoritative stock wins; any still-pending deltas for the product
	// get layered back on by the refresh at the end of the pass.
	if err := e.store.SetProductStock(ctx, event.ProductID, res.NewStock); err != nil {
		utils.LogError(err, "Sync: failed to store authoritative stock")
	}
	return e.store.UpdateEventStatus(ctx, event.LocalID, models.EventStatusSynced, nil)
}

// recordRetry bumps the retry bookkeeping after a transport failure.
func (e *Engine) recordRetry(ctx context.Context, state *models.SyncState, userMessage, detail string) {
	now := time.Now()
	state.RetryCount++
	state.LastRetryAt = &now
	state.LastError = &userMessage
	state.LastErrorDetail = &detail
	if err := e.store.SaveSyncState(ctx, state); err != nil {
		utils.LogError(err, "Sync: failed to save retry state")
	}
}

// recomputeStatus derives the settled status after a pass and clears the
// error bookkeeping once everything is synced.
func (e *Engine) recomputeStatus(ctx context.Context) (*models.SyncState, int, error) {
	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return nil, 0, err
	}

	conflictCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusConflict)
	if err != nil {
		return nil, 0, err
	}
	pendingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusPending)
	if err != nil {
		return nil, 0, err
	}
	syncingCount, err := e.store.CountEventsByStatus(ctx, models.EventStatusSyncing)
	if err != nil {
		return nil, 0, err
	}

	switch {
	case conflictCount > 0:
		state.Status = models.SyncStatusConflict
	case pendingCount+syncingCount > 0:
		state.Status = models.SyncStatusSyncing
	default:
		state.Status = models.SyncStatusSynced
		state.RetryCount = 0
		state.LastRetryAt = nil
		state.LastError = nil
		state.LastErrorDetail = nil
	}

	if err := e.store.SaveSyncState(ctx, state); err != nil {
		return nil, 0, err
	}
	return state, conflictCount, nil
}
