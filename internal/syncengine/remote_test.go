package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos_sync_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAuthority_ApplyInventoryEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/inventory-events", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req models.ApplyInventoryEventRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(7), req.ProductID)
		assert.Equal(t, -2, req.QtyChange)

		json.NewEncoder(w).Encode(models.ApplyInventoryEventResult{
			EventID:  11,
			NewStock: 3,
			Status:   models.ApplyStatusApplied,
		})
	}))
	defer server.Close()

	authority := NewHTTPAuthority(server.URL, "test-token", server.Client())
	result, err := authority.ApplyInventoryEvent(context.Background(), models.ApplyInventoryEventRequest{
		ProductID: 7,
		EventType: models.EventTypeSale,
		QtyChange: -2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.EventID)
	assert.Equal(t, 3, result.NewStock)
	assert.Equal(t, models.ApplyStatusApplied, result.Status)
}

func TestHTTPAuthority_ParsesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "CONFIG_ERROR", "message": "schema missing"},
		})
	}))
	defer server.Close()

	authority := NewHTTPAuthority(server.URL, "", server.Client())
	_, err := authority.FetchProducts(context.Background())
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
	assert.Equal(t, "CONFIG_ERROR", remoteErr.Code)
	assert.Equal(t, "schema missing", remoteErr.Message)

	userMsg, _ := classifyError(err)
	assert.Equal(t, configErrorMessage, userMsg)
}

func TestHTTPAuthority_FetchesTokenLazily(t *testing.T) {
	// An agent that boots offline holds no token. The first request after
	// connectivity returns must obtain one through the source instead of
	// sending unauthenticated forever.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]models.Product{})
	}))
	defer server.Close()

	sourceCalls := 0
	authority := NewHTTPAuthority(server.URL, "", server.Client())
	authority.SetTokenSource(func(ctx context.Context) (string, error) {
		sourceCalls++
		return "issued-token", nil
	})

	_, err := authority.FetchProducts(context.Background())
	require.NoError(t, err)
	_, err = authority.FetchProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sourceCalls, "token should be fetched once and reused")
}

func TestHTTPAuthority_RefreshesRejectedToken(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "UNAUTHORIZED", "message": "token expired"},
			})
			return
		}
		json.NewEncoder(w).Encode([]models.Product{{ID: 1, Name: "Widget"}})
	}))
	defer server.Close()

	authority := NewHTTPAuthority(server.URL, "stale-token", server.Client())
	authority.SetTokenSource(func(ctx context.Context) (string, error) {
		return "fresh-token", nil
	})

	products, err := authority.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
	assert.Equal(t, 2, hits, "rejected request should be retried once with the fresh token")
}

func TestHTTPAuthority_UnauthorizedWithoutSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "UNAUTHORIZED", "message": "invalid token"},
		})
	}))
	defer server.Close()

	authority := NewHTTPAuthority(server.URL, "stale-token", server.Client())
	_, err := authority.FetchProducts(context.Background())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
}

func TestHTTPAuthority_FetchStockSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stock-snapshots", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"1": 5, "2": 0})
	}))
	defer server.Close()

	authority := NewHTTPAuthority(server.URL, "", server.Client())
	snapshot, err := authority.FetchStockSnapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StockSnapshot{1: 5, 2: 0}, snapshot)
}
