package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos_sync_backend/internal/localstore"
	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/syncengine"
	"pos_sync_backend/pkg/utils"
)

// The agent is a headless device-side process: it owns the durable local
// store and the sync engine, and keeps reconciling against the server
// until stopped. The POS UI in front of it talks to the engine surface.
func main() {
	utils.InitLogger()

	serverURL := utils.Getenv("POS_SERVER_URL", "http://localhost:8080")
	storePath := utils.Getenv("POS_STORE_PATH", "pos-agent.db")
	deviceID := utils.Getenv("POS_DEVICE_ID", "")
	apiKey := utils.Getenv("POS_DEVICE_API_KEY", "")
	syncIntervalSec := utils.GetenvInt("POS_SYNC_INTERVAL_SECONDS", 30)
	if syncIntervalSec < 1 {
		syncIntervalSec = 30
	}

	if deviceID == "" || apiKey == "" {
		log.Fatal("POS_DEVICE_ID and POS_DEVICE_API_KEY must be set")
	}

	store, err := localstore.Open(storePath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()
	utils.LogInfo("Local store opened", map[string]interface{}{"path": storePath})

	httpClient := &http.Client{Timeout: 15 * time.Second}

	// The token is fetched lazily on the first delivery and re-fetched
	// whenever the server rejects it, so starting offline is fine: the
	// engine queues locally and the next sync pass obtains a token.
	remote := syncengine.NewHTTPAuthority(serverURL, "", httpClient)
	remote.SetTokenSource(func(ctx context.Context) (string, error) {
		return fetchDeviceToken(ctx, httpClient, serverURL, deviceID, apiKey)
	})
	conn := syncengine.NewPingConnectivity(serverURL+"/ping", httpClient, 10*time.Second)
	defer conn.Close()

	engine := syncengine.New(store, remote, conn, deviceID)
	scheduler := syncengine.NewScheduler(engine, time.Duration(syncIntervalSec)*time.Second)
	defer scheduler.Close()

	utils.LogInfo("Sync agent started", map[string]interface{}{
		"device_id": deviceID,
		"server":    serverURL,
		"interval":  syncIntervalSec,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.LogInfo("Shutting down sync agent")
	engine.Wait()

	diag, err := engine.GetDiagnostics(context.Background())
	if err == nil {
		utils.LogInfo("Final sync status", map[string]interface{}{
			"status":     diag.Status,
			"pending":    diag.PendingCount,
			"conflicts":  diag.ConflictCount,
			"last_error": utils.StringOrEmpty(diag.LastError),
		})
	}
}

// fetchDeviceToken exchanges the device credential for a bearer token.
func fetchDeviceToken(ctx context.Context, client *http.Client, serverURL, deviceID, apiKey string) (string, error) {
	payload, err := json.Marshal(models.DeviceTokenRequest{DeviceID: deviceID, APIKey: apiKey})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/v1/devices/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected with status %d", resp.StatusCode)
	}

	var tokenResp models.DeviceTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return tokenResp.AccessToken, nil
}
