package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"pos_sync_backend/internal/models"
)

// RemoteError is a structured error returned by the stock authority's API.
// Code carries the server's application error code when the response body
// held the standard error envelope.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
}

// TokenSource obtains a fresh device bearer token. Installed via
// SetTokenSource; invoked when no token is held or the server rejects
// the current one.
type TokenSource func(ctx context.Context) (string, error)

// HTTPAuthority talks to the stock authority server over its JSON API.
// Timeouts are whatever the supplied http.Client enforces.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	token  string
	source TokenSource
}

// NewHTTPAuthority creates an authority client. token is the device bearer
// token issued by the server; it may be empty when a TokenSource is
// installed afterwards.
func NewHTTPAuthority(baseURL, token string, client *http.Client) *HTTPAuthority {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAuthority{baseURL: baseURL, token: token, client: client}
}

// SetTokenSource installs the callback used to fetch and refresh the
// bearer token. With a source installed the client recovers from starting
// without a token (device offline at boot) and from token expiry.
func (a *HTTPAuthority) SetTokenSource(source TokenSource) {
	a.mu.Lock()
	a.source = source
	a.mu.Unlock()
}

// ApplyInventoryEvent calls the idempotent stock-mutation procedure.
func (a *HTTPAuthority) ApplyInventoryEvent(ctx context.Context, req models.ApplyInventoryEventRequest) (*models.ApplyInventoryEventResult, error) {
	var result models.ApplyInventoryEventResult
	if err := a.do(ctx, http.MethodPost, "/api/v1/inventory-events", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchProducts retrieves the full catalog.
func (a *HTTPAuthority) FetchProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := a.do(ctx, http.MethodGet, "/api/v1/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FetchStockSnapshots retrieves the full product_id -> quantity map.
func (a *HTTPAuthority) FetchStockSnapshots(ctx context.Context) (models.StockSnapshot, error) {
	var snapshot models.StockSnapshot
	if err := a.do(ctx, http.MethodGet, "/api/v1/stock-snapshots", nil, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// errorEnvelope matches the server's standard error response body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// currentToken returns the held token, fetching one through the source
// when none is held yet.
func (a *HTTPAuthority) currentToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" || a.source == nil {
		return a.token, nil
	}
	token, err := a.source(ctx)
	if err != nil {
		return "", fmt.Errorf("token fetch failed: %w", err)
	}
	a.token = token
	return token, nil
}

// tryRefresh replaces a token the server just rejected. Returns false when
// no source is installed or the fetch fails; a concurrent refresh that
// already swapped the token is reused instead of fetching again.
func (a *HTTPAuthority) tryRefresh(ctx context.Context, stale string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return "", false
	}
	if a.token != stale && a.token != "" {
		return a.token, true
	}
	token, err := a.source(ctx)
	if err != nil || token == "" {
		return "", false
	}
	a.token = token
	return token, true
}

func (a *HTTPAuthority) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	token, err := a.currentToken(ctx)
	if err != nil {
		return err
	}

	resp, err := a.send(ctx, method, path, payload, token)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}

	// A rejected token may just be expired; swap it out and retry once.
	if resp.StatusCode == http.StatusUnauthorized {
		if fresh, ok := a.tryRefresh(ctx, token); ok && fresh != token {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resp, err = a.send(ctx, method, path, payload, fresh)
			if err != nil {
				return fmt.Errorf("request to %s failed: %w", path, err)
			}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{StatusCode: resp.StatusCode, Message: resp.Status}
		var envelope errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
			remoteErr.Code = envelope.Error.Code
			remoteErr.Message = envelope.Error.Message
		}
		return remoteErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (a *HTTPAuthority) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.client.Do(req)
}
