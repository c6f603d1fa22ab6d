// Package syncengine implements the offline-first synchronization engine:
// optimistic local mutations over the durable queue in localstore, a
// single-flight reconciliation pass against the remote stock authority,
// and the status feed consumed by the UI layer.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos_sync_backend/internal/localstore"
	"pos_sync_backend/internal/models"
	"pos_sync_backend/pkg/utils"

	"github.com/google/uuid"
)

// Custom Errors reported synchronously by Enqueue. These are local
// precondition failures: nothing is queued and no state changes.
var (
	ErrProductNotCached   = errors.New("product not found in local cache")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrInvalidQtyChange   = errors.New("invalid quantity change")
	ErrEventNotFound      = errors.New("queued event not found")
	ErrEventNotInConflict = errors.New("queued event is not in conflict")
)

// syncedEventRetention is how many synced events are kept for diagnostics
// before oldest-first pruning.
const syncedEventRetention = 100

// Authority is the remote stock authority as seen by the engine. The
// production implementation is HTTPAuthority; tests substitute a fake.
type Authority interface {
	ApplyInventoryEvent(ctx context.Context, req models.ApplyInventoryEventRequest) (*models.ApplyInventoryEventResult, error)
	FetchProducts(ctx context.Context) ([]models.Product, error)
	FetchStockSnapshots(ctx context.Context) (models.StockSnapshot, error)
}

// Connectivity is the device's "am I online" oracle. Transitions delivers
// a signal on connectivity or visibility changes; the scheduler folds
// them into sync triggers.
type Connectivity interface {
	Online() bool
	Transitions() <-chan struct{}
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	Synced    int `json:"synced"`
	Conflicts int `json:"conflicts"`
}

// syncCall is one in-flight reconciliation pass. Concurrent Sync callers
// share the same call and observe the same result.
type syncCall struct {
	done   chan struct{}
	result SyncResult
	err    error
}

// Engine is the device-side synchronization engine. One Engine per device
// process; construct at app start, Close via the Scheduler that owns the
// trigger loop.
type Engine struct {
	store    *localstore.Store
	remote   Authority
	conn     Connectivity
	deviceID string

	mu     sync.Mutex
	call   *syncCall
	wg     sync.WaitGroup // background syncs triggered by Enqueue
}

// New creates a sync engine for the given device.
func New(store *localstore.Store, remote Authority, conn Connectivity, deviceID string) *Engine {
	return &Engine{
		store:    store,
		remote:   remote,
		conn:     conn,
		deviceID: deviceID,
	}
}

// Enqueue records an intended inventory mutation: it applies the delta to
// the cached product immediately, appends a pending queued event, and, if
// online, kicks off a background sync. The returned error reflects only
// the local precondition checks; the remote outcome surfaces later through
// the status feed.
func (e *Engine) Enqueue(ctx context.Context, productID int64, eventType string, qtyChange int, note string) (*models.QueuedEvent, error) {
	if !models.IsValidEventType(eventType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	// The authority rejects zero deltas; a zero-delta event queued here
	// would never leave the queue.
	if qtyChange == 0 {
		return nil, fmt.Errorf("%w: qty_change must be non-zero", ErrInvalidQtyChange)
	}

	product, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: product ID %d", ErrProductNotCached, productID)
		}
		return nil, err
	}

	// The cached stock already carries all earlier unconfirmed deltas, so
	// this is the optimistic-stock formula from the refresh path.
	newStock := product.Stock + qtyChange
	if eventType == models.EventTypeSale && newStock < 0 {
		return nil, fmt.Errorf("%w: product %d has %d, requested change %d",
			ErrInsufficientStock, productID, product.Stock, qtyChange)
	}

	event := models.QueuedEvent{
		LocalID:   uuid.NewString(),
		ProductID: productID,
		EventType: eventType,
		QtyChange: qtyChange,
		Note:      utils.NewNullString(note),
		DeviceID:  e.deviceID,
		Status:    models.EventStatusPending,
		CreatedAt: time.Now(),
	}

	if err := e.store.SetProductStock(ctx, productID, newStock); err != nil {
		return nil, err
	}
	if err := e.store.InsertEvent(ctx, &event); err != nil {
		// Put the optimistic delta back out; the event was never queued.
		if revertErr := e.store.SetProductStock(ctx, productID, product.Stock); revertErr != nil {
			utils.LogError(revertErr, "Enqueue: failed to revert optimistic stock")
		}
		return nil, err
	}

	if e.conn.Online() {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if _, err := e.Sync(context.Background()); err != nil {
				utils.LogError(err, "Enqueue: background sync failed")
			}
		}()
	}

	return &event, nil
}

// Sync runs one reconciliation pass. It is safe to invoke concurrently:
// at most one pass executes at a time and concurrent callers await the
// in-flight pass and share its result.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	e.mu.Lock()
	if e.call != nil {
		call := e.call
		e.mu.Unlock()
		<-call.done
		return call.result, call.err
	}
	call := &syncCall{done: make(chan struct{})}
	e.call = call
	e.mu.Unlock()

	call.result, call.err = e.runSyncPass(ctx)

	e.mu.Lock()
	e.call = nil
	e.mu.Unlock()
	close(call.done)

	return call.result, call.err
}

// Wait blocks until background syncs started by Enqueue have finished.
// Intended for orderly shutdown and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}
