package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos_sync_backend/internal/models"
)

// LoadSyncState returns the singleton sync-state record, creating a
// default one on first use.
func (s *Store) LoadSyncState(ctx context.Context) (*models.SyncState, error) {
	var state models.SyncState
	var lastSyncAt, lastAttemptAt, lastRetryAt sql.NullTime

	query := `SELECT status, last_sync_at, last_attempt_at, last_retry_at, retry_count, last_error, last_error_detail
	          FROM sync_state WHERE id = 1`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&state.Status, &lastSyncAt, &lastAttemptAt, &lastRetryAt,
		&state.RetryCount, &state.LastError, &state.LastErrorDetail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		state = models.SyncState{Status: models.SyncStatusSynced}
		if saveErr := s.SaveSyncState(ctx, &state); saveErr != nil {
			return nil, saveErr
		}
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	if lastSyncAt.Valid {
		state.LastSyncAt = &lastSyncAt.Time
	}
	if lastAttemptAt.Valid {
		state.LastAttemptAt = &lastAttemptAt.Time
	}
	if lastRetryAt.Valid {
		state.LastRetryAt = &lastRetryAt.Time
	}
	return &state, nil
}

// SaveSyncState overwrites the singleton sync-state record.
func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	query := `INSERT OR REPLACE INTO sync_state
	          (id, status, last_sync_at, last_attempt_at, last_retry_at, retry_count, last_error, last_error_detail)
	          VALUES (1, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		state.Status, state.LastSyncAt, state.LastAttemptAt, state.LastRetryAt,
		state.RetryCount, state.LastError, state.LastErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}
