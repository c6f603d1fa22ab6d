package syncengine

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// PingConnectivity is a Connectivity oracle that polls the server's health
// endpoint. It reports online/offline and signals a transition whenever the
// device regains connectivity, which the scheduler turns into a sync pass.
type PingConnectivity struct {
	pingURL  string
	client   *http.Client
	interval time.Duration

	online      atomic.Bool
	transitions chan struct{}
	cancel      context.CancelFunc
	once        sync.Once
	done        chan struct{}
}

// NewPingConnectivity starts polling pingURL at the given interval. The
// oracle starts offline until the first successful probe.
func NewPingConnectivity(pingURL string, client *http.Client, interval time.Duration) *PingConnectivity {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &PingConnectivity{
		pingURL:     pingURL,
		client:      client,
		interval:    interval,
		transitions: make(chan struct{}, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// Online reports the last probed connectivity state.
func (c *PingConnectivity) Online() bool {
	return c.online.Load()
}

// Transitions signals when the device comes back online.
func (c *PingConnectivity) Transitions() <-chan struct{} {
	return c.transitions
}

// Close stops the probe loop.
func (c *PingConnectivity) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}

func (c *PingConnectivity) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *PingConnectivity) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pingURL, nil)
	if err != nil {
		c.setOnline(false)
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.setOnline(false)
		return
	}
	resp.Body.Close()
	c.setOnline(resp.StatusCode == http.StatusOK)
}

func (c *PingConnectivity) setOnline(online bool) {
	wasOnline := c.online.Swap(online)
	if online && !wasOnline {
		// Coalesce: a pending transition signal is enough.
		select {
		case c.transitions <- struct{}{}:
		default:
		}
	}
}
