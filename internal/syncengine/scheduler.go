package syncengine

import (
	"context"
	"sync"
	"time"

	"pos_sync_backend/pkg/utils"
)

// Scheduler folds every sync trigger (app start, connectivity
// transitions, explicit user action, the periodic timer) into the
// engine's single-flight reconciliation pass. Overlapping triggers
// coalesce: a trigger arriving while a pass runs schedules at most one
// follow-up pass.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	trigger chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}
}

// NewScheduler creates a scheduler around the engine. interval is the
// periodic sync cadence.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:   engine,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Trigger requests a sync pass. Non-blocking; triggers arriving while one
// is already queued are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Close stops the scheduler loop. Safe to call more than once.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// App start counts as a trigger.
	s.syncOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		case <-s.trigger:
			s.syncOnce(ctx)
		case <-s.engine.conn.Transitions():
			s.syncOnce(ctx)
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	if _, err := s.engine.Sync(ctx); err != nil {
		utils.LogError(err, "Scheduler: sync pass failed")
	}
}
