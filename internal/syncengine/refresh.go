package syncengine

import (
	"context"
	"errors"
	"time"

	"pos_sync_backend/internal/localstore"
	"pos_sync_backend/internal/models"
)

// RefreshCache replaces the whole cached product table with fresh
// authoritative data, re-applying the deltas of still-unconfirmed local
// events on top so displayed stock never regresses while events are
// queued. No-op when offline.
func (e *Engine) RefreshCache(ctx context.Context) error {
	if !e.conn.Online() {
		return nil
	}

	products, err := e.remote.FetchProducts(ctx)
	if err != nil {
		return err
	}
	snapshot, err := e.remote.FetchStockSnapshots(ctx)
	if err != nil {
		return err
	}

	pendingDeltas, err := e.pendingDeltasByProduct(ctx)
	if err != nil {
		return err
	}

	cached := make([]models.CachedProduct, 0, len(products))
	for _, product := range products {
		cached = append(cached, models.CachedProduct{
			ID:        product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			Category:  product.Category,
			Size:      product.Size,
			Color:     product.Color,
			Price:     product.Price,
			Cost:      product.Cost,
			ImageURL:  product.ImageURL,
			Stock:     snapshot[product.ID] + pendingDeltas[product.ID],
			CreatedAt: product.CreatedAt,
			UpdatedAt: product.UpdatedAt,
		})
	}

	if err := e.store.ReplaceAllProducts(ctx, cached); err != nil {
		return err
	}

	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	state.LastSyncAt = &now
	return e.store.SaveSyncState(ctx, state)
}

// pendingDeltasByProduct totals the qty deltas of all not-yet-confirmed
// events per product.
func (e *Engine) pendingDeltasByProduct(ctx context.Context) (map[int64]int, error) {
	events, err := e.store.ListEventsByStatuses(ctx, models.EventStatusPending, models.EventStatusSyncing)
	if err != nil {
		return nil, err
	}
	deltas := map[int64]int{}
	for _, event := range events {
		deltas[event.ProductID] += event.QtyChange
	}
	return deltas, nil
}

// ResolveConflict deletes a conflict-status event from the queue. This is
// the only supported resolution path; whether the user re-enters the
// action afterwards is up to the UI. Displayed stock needs no correction
// here: conflict deltas are excluded from the pending totals, so the
// refresh that closed the conflicting pass already dropped them.
func (e *Engine) ResolveConflict(ctx context.Context, localID string) error {
	event, err := e.store.GetEvent(ctx, localID)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if event.Status != models.EventStatusConflict {
		return ErrEventNotInConflict
	}

	if err := e.store.DeleteEvent(ctx, localID); err != nil {
		return err
	}

	_, _, err = e.recomputeStatus(ctx)
	return err
}

// Purge clears all local data and resets the sync-state record. Explicit
// local-data reset only; queued work is lost.
func (e *Engine) Purge(ctx context.Context) error {
	return e.store.Purge(ctx)
}
