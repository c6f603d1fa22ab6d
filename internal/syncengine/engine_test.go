package syncengine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pos_sync_backend/internal/localstore"
	"pos_sync_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthority is an in-memory stock authority with the real contract:
// serialized per-call applies, no-negative-stock, and idempotent replay
// keyed on (device_id, local_event_id).
type fakeAuthority struct {
	mu         sync.Mutex
	products   map[int64]models.Product
	stock      map[int64]int
	outcomes   map[string]models.ApplyInventoryEventResult
	nextID     int64
	applyCalls int

	failTransport bool          // reject calls without applying
	dropAckNext   bool          // apply and record, then report a transport error
	remoteErr     *RemoteError  // returned instead of the generic error when failing
	applyGate     chan struct{} // if non-nil, Apply blocks until the gate closes
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		products: map[int64]models.Product{},
		stock:    map[int64]int{},
		outcomes: map[string]models.ApplyInventoryEventResult{},
	}
}

func (f *fakeAuthority) addProduct(id int64, name string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.products[id] = models.Product{ID: id, Name: name, SKU: fmt.Sprintf("SKU-%d", id), Price: 9.99, CreatedAt: now, UpdatedAt: now}
	f.stock[id] = stock
}

func (f *fakeAuthority) transportError() error {
	if f.remoteErr != nil {
		return f.remoteErr
	}
	return errors.New("connection refused")
}

func (f *fakeAuthority) ApplyInventoryEvent(_ context.Context, req models.ApplyInventoryEventRequest) (*models.ApplyInventoryEventResult, error) {
	if f.applyGate != nil {
		<-f.applyGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++

	if f.failTransport {
		return nil, f.transportError()
	}

	key := ""
	if req.DeviceID != nil && req.LocalEventID != nil {
		key = *req.DeviceID + "|" + *req.LocalEventID
		if outcome, ok := f.outcomes[key]; ok {
			outcome.NewStock = f.stock[req.ProductID]
			return &outcome, nil
		}
	}

	f.nextID++
	result := models.ApplyInventoryEventResult{EventID: f.nextID}
	newStock := f.stock[req.ProductID] + req.QtyChange
	if newStock < 0 {
		msg := fmt.Sprintf("insufficient stock: have %d, change %d would go negative", f.stock[req.ProductID], req.QtyChange)
		result.Status = models.ApplyStatusConflict
		result.ErrorMessage = &msg
		result.NewStock = f.stock[req.ProductID]
	} else {
		f.stock[req.ProductID] = newStock
		result.Status = models.ApplyStatusApplied
		result.NewStock = newStock
	}

	if key != "" {
		f.outcomes[key] = result
	}

	if f.dropAckNext {
		f.dropAckNext = false
		return nil, f.transportError()
	}
	return &result, nil
}

func (f *fakeAuthority) FetchProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransport {
		return nil, f.transportError()
	}
	products := []models.Product{}
	for _, product := range f.products {
		products = append(products, product)
	}
	return products, nil
}

func (f *fakeAuthority) FetchStockSnapshots(context.Context) (models.StockSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransport {
		return nil, f.transportError()
	}
	snapshot := models.StockSnapshot{}
	for id, quantity := range f.stock {
		snapshot[id] = quantity
	}
	return snapshot, nil
}

func (f *fakeAuthority) stockOf(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

func (f *fakeAuthority) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyCalls
}

// fakeConn is a switchable connectivity oracle.
type fakeConn struct {
	mu     sync.Mutex
	online bool
	ch     chan struct{}
}

func newFakeConn(online bool) *fakeConn {
	return &fakeConn{online: online, ch: make(chan struct{}, 1)}
}

func (c *fakeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) Transitions() <-chan struct{} { return c.ch }

func (c *fakeConn) setOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()
	if online && !wasOnline {
		select {
		case c.ch <- struct{}{}:
		default:
		}
	}
}

func newTestEngine(t *testing.T, remote *fakeAuthority, conn *fakeConn, deviceID string) (*Engine, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), deviceID+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := New(store, remote, conn, deviceID)

	// Seed the local mirror the way a first refresh would.
	wasOnline := conn.Online()
	conn.setOnline(true)
	require.NoError(t, engine.RefreshCache(context.Background()))
	conn.setOnline(wasOnline)
	if !wasOnline {
		// drain the transition signal the seeding toggles produced
		select {
		case <-conn.ch:
		default:
		}
	}
	return engine, store
}

func TestEnqueue_OfflineOptimisticApply(t *testing.T) {
	// Scenario A, first half: offline sale shows immediately, event pends.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	event, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, event.Status)
	assert.Equal(t, "device-1", event.DeviceID)
	assert.NotEmpty(t, event.LocalID)

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, product.Stock)

	// Authority untouched while offline.
	assert.Equal(t, 5, remote.stockOf(1))
	assert.Zero(t, remote.calls())

	status, err := engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusOffline, status)
}

func TestEnqueue_InsufficientStockRejectedSynchronously(t *testing.T) {
	// Scenario B: sale at zero stock is rejected locally, nothing queued.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 0)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, product.Stock)

	pending, err := engine.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestEnqueue_RestockAllowedPastLocalCheck(t *testing.T) {
	// The zero-floor precondition applies to sales only.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 0)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeRestock, 10, "")
	require.NoError(t, err)
	_, err = engine.Enqueue(ctx, 1, models.EventTypeAdjustment, -3, "")
	require.NoError(t, err)

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, product.Stock)
}

func TestEnqueue_ZeroQtyChangeRejected(t *testing.T) {
	// The authority refuses zero deltas, so accepting one locally would
	// park an undeliverable event in the queue forever.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeAdjustment, 0, "")
	assert.ErrorIs(t, err, ErrInvalidQtyChange)

	pending, err := engine.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, product.Stock)
}

func TestEnqueue_UnknownProduct(t *testing.T) {
	remote := newFakeAuthority()
	conn := newFakeConn(false)
	engine, _ := newTestEngine(t, remote, conn, "device-1")

	_, err := engine.Enqueue(context.Background(), 42, models.EventTypeSale, -1, "")
	assert.ErrorIs(t, err, ErrProductNotCached)
}

func TestSync_DrainsQueueAfterComingOnline(t *testing.T) {
	// Scenario A, second half.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	event, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)

	conn.setOnline(true)
	result, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Zero(t, result.Conflicts)

	assert.Equal(t, 4, remote.stockOf(1))

	stored, err := store.GetEvent(ctx, event.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusSynced, stored.Status)

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, product.Stock)

	status, err := engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, status)
}

func TestSync_ConcurrentDevicesOneWinsOneConflicts(t *testing.T) {
	// Scenario C: two devices race over the last unit.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 1)
	connA := newFakeConn(false)
	connB := newFakeConn(false)
	engineA, storeA := newTestEngine(t, remote, connA, "device-a")
	engineB, storeB := newTestEngine(t, remote, connB, "device-b")
	ctx := context.Background()

	_, err := engineA.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)
	_, err = engineB.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)

	connA.setOnline(true)
	connB.setOnline(true)

	var wg sync.WaitGroup
	results := make([]SyncResult, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0], _ = engineA.Sync(ctx) }()
	go func() { defer wg.Done(); results[1], _ = engineB.Sync(ctx) }()
	wg.Wait()

	assert.Equal(t, 0, remote.stockOf(1))
	assert.Equal(t, 1, results[0].Synced+results[1].Synced)
	assert.Equal(t, 1, results[0].Conflicts+results[1].Conflicts)

	conflicts := 0
	for _, store := range []*localstore.Store{storeA, storeB} {
		events, err := store.ListEventsByStatuses(ctx, models.EventStatusConflict)
		require.NoError(t, err)
		conflicts += len(events)
		for _, event := range events {
			require.NotNil(t, event.LastError)
			assert.Contains(t, *event.LastError, "insufficient stock")
		}
	}
	assert.Equal(t, 1, conflicts)
}

func TestSync_IdempotentReplayAfterLostAck(t *testing.T) {
	// The authority applied the delta but the acknowledgement was lost;
	// the retried pass must not decrement twice.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	event, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)

	conn.setOnline(true)
	remote.dropAckNext = true
	result, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Synced)

	// Event went back to pending with the retry message attached.
	stored, err := store.GetEvent(ctx, event.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, retryMessage, *stored.LastError)

	diag, err := engine.GetDiagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, diag.RetryCount)
	require.NotNil(t, diag.LastRetryAt)

	// Second pass replays the same local event ID: same outcome, one effect.
	result, err = engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 4, remote.stockOf(1))

	status, err := engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, status)

	// Retry bookkeeping cleared once settled.
	diag, err = engine.GetDiagnostics(ctx)
	require.NoError(t, err)
	assert.Zero(t, diag.RetryCount)
	assert.Nil(t, diag.LastError)
}

func TestSync_SingleFlight(t *testing.T) {
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, _ := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)
	conn.setOnline(true)

	gate := make(chan struct{})
	remote.applyGate = gate

	var wg sync.WaitGroup
	results := make([]SyncResult, 2)
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Sync(ctx)
		}(i)
	}

	// Let the in-flight pass proceed; the second caller must piggyback on
	// it instead of starting another.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 1, remote.calls())
	assert.Equal(t, 4, remote.stockOf(1))
}

func TestRefreshCache_LayersPendingDeltas(t *testing.T) {
	// Optimistic-consistency invariant across a refresh.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 10)
	remote.addProduct(2, "Gadget", 3)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -2, "")
	require.NoError(t, err)
	_, err = engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)

	// Authority moves independently (another device sold some).
	remote.mu.Lock()
	remote.stock[1] = 8
	remote.mu.Unlock()

	conn.setOnline(true)
	require.NoError(t, engine.RefreshCache(ctx))

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8-3, product.Stock) // authoritative + pending deltas

	untouched, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, untouched.Stock)

	state, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.NotNil(t, state.LastSyncAt)
}

func TestRefreshCache_NoopOffline(t *testing.T) {
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 10)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	remote.mu.Lock()
	remote.stock[1] = 99
	remote.mu.Unlock()

	require.NoError(t, engine.RefreshCache(ctx))

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock)
}

func TestResolveConflict_RemovesEventAndDelta(t *testing.T) {
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 1)
	conn := newFakeConn(false)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	event, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)

	// Another device takes the last unit before we sync.
	remote.mu.Lock()
	remote.stock[1] = 0
	remote.mu.Unlock()

	conn.setOnline(true)
	result, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	status, err := engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusConflict, status)

	conflicts, err := engine.GetConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, event.LocalID, conflicts[0].LocalID)

	require.NoError(t, engine.ResolveConflict(ctx, event.LocalID))

	// Resolving only deletes the losing event; stock formula is restored.
	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, product.Stock)

	status, err = engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, status)

	assert.ErrorIs(t, engine.ResolveConflict(ctx, event.LocalID), ErrEventNotFound)
}

func TestResolveConflict_RejectsNonConflictEvents(t *testing.T) {
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, _ := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	event, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)
	assert.ErrorIs(t, engine.ResolveConflict(ctx, event.LocalID), ErrEventNotInConflict)
}

func TestSync_RetentionPruning(t *testing.T) {
	// Scenario D: 150 synced events shrink to the newest 100 after a pass.
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 1000)
	conn := newFakeConn(true)
	engine, store := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	base := time.Now().Add(-300 * time.Minute)
	for i := 0; i < 150; i++ {
		event := models.QueuedEvent{
			LocalID:   fmt.Sprintf("ev-%03d", i),
			ProductID: 1,
			EventType: models.EventTypeSale,
			QtyChange: -1,
			DeviceID:  "device-1",
			Status:    models.EventStatusSynced,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.InsertEvent(ctx, &event))
	}

	_, err := engine.Sync(ctx)
	require.NoError(t, err)

	syncedCount, err := store.CountEventsByStatus(ctx, models.EventStatusSynced)
	require.NoError(t, err)
	assert.Equal(t, 100, syncedCount)
}

func TestClassifyError(t *testing.T) {
	userMsg, detail := classifyError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, retryMessage, userMsg)
	assert.Contains(t, detail, "connection refused")

	userMsg, detail = classifyError(&RemoteError{StatusCode: 500, Code: "CONFIG_ERROR", Message: "schema missing"})
	assert.Equal(t, configErrorMessage, userMsg)
	assert.Contains(t, detail, "CONFIG_ERROR")

	// Unknown remote codes still get the generic retry treatment.
	userMsg, _ = classifyError(&RemoteError{StatusCode: 500, Code: "INTERNAL_SERVER_ERROR", Message: "boom"})
	assert.Equal(t, retryMessage, userMsg)
}

func TestSync_TransportFailureKeepsRetrying(t *testing.T) {
	remote := newFakeAuthority()
	remote.addProduct(1, "Widget", 5)
	conn := newFakeConn(false)
	engine, _ := newTestEngine(t, remote, conn, "device-1")
	ctx := context.Background()

	_, err := engine.Enqueue(ctx, 1, models.EventTypeSale, -1, "")
	require.NoError(t, err)
	conn.setOnline(true)

	remote.mu.Lock()
	remote.failTransport = true
	remote.mu.Unlock()

	for i := 0; i < 3; i++ {
		result, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Synced)
	}

	diag, err := engine.GetDiagnostics(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, diag.RetryCount, 3)
	assert.Equal(t, models.SyncStatusSyncing, diag.Status)

	remote.mu.Lock()
	remote.failTransport = false
	remote.mu.Unlock()

	result, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 4, remote.stockOf(1))
}
