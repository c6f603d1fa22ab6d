package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos_sync_backend/internal/models"
)

const queuedEventColumns = `local_id, product_id, event_type, qty_change, note, device_id, status, last_error, created_at`

// InsertEvent appends a new queued event.
func (s *Store) InsertEvent(ctx context.Context, event *models.QueuedEvent) error {
	query := `INSERT INTO queued_events (` + queuedEventColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		event.LocalID, event.ProductID, event.EventType, event.QtyChange,
		event.Note, event.DeviceID, event.Status, event.LastError, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queued event %s: %w", event.LocalID, err)
	}
	return nil
}

// GetEvent returns one queued event by its local ID.
func (s *Store) GetEvent(ctx context.Context, localID string) (*models.QueuedEvent, error) {
	query := `SELECT ` + queuedEventColumns + ` FROM queued_events WHERE local_id = ?`
	row := s.db.QueryRowContext(ctx, query, localID)
	event, err := scanQueuedEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queued event %s: %w", localID, err)
	}
	return event, nil
}

// ListEventsByStatuses returns all events whose status is in the given set,
// oldest first.
func (s *Store) ListEventsByStatuses(ctx context.Context, statuses ...string) ([]models.QueuedEvent, error) {
	if len(statuses) == 0 {
		return []models.QueuedEvent{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := `SELECT ` + queuedEventColumns + ` FROM queued_events
	          WHERE status IN (` + placeholders + `)
	          ORDER BY created_at ASC, local_id ASC`

	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued events: %w", err)
	}
	defer rows.Close()

	events := []models.QueuedEvent{}
	for rows.Next() {
		event, err := scanQueuedEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating queued events: %w", err)
	}
	return events, nil
}

// UpdateEventStatus sets the status and last error of one queued event.
func (s *Store) UpdateEventStatus(ctx context.Context, localID, status string, lastError *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queued_events SET status = ?, last_error = ? WHERE local_id = ?`,
		status, lastError, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queued event %s: %w", localID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed checking update of queued event %s: %w", localID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes one queued event. Used only by explicit conflict
// resolution and retention pruning.
func (s *Store) DeleteEvent(ctx context.Context, localID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM queued_events WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete queued event %s: %w", localID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed checking delete of queued event %s: %w", localID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountEventsByStatus returns how many events currently hold the status.
func (s *Store) CountEventsByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_events WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", status, err)
	}
	return count, nil
}

// PruneSyncedEvents deletes synced events oldest-first so that at most
// keep of them remain. Pending, syncing, and conflict events are never
// touched.
func (s *Store) PruneSyncedEvents(ctx context.Context, keep int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
	    DELETE FROM queued_events
	    WHERE status = ? AND local_id NOT IN (
	        SELECT local_id FROM queued_events
	        WHERE status = ?
	        ORDER BY created_at DESC, local_id DESC
	        LIMIT ?
	    )`, models.EventStatusSynced, models.EventStatusSynced, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune synced events: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed checking pruned events: %w", err)
	}
	return int(pruned), nil
}

func scanQueuedEvent(row rowScanner) (*models.QueuedEvent, error) {
	var event models.QueuedEvent
	err := row.Scan(
		&event.LocalID, &event.ProductID, &event.EventType, &event.QtyChange,
		&event.Note, &event.DeviceID, &event.Status, &event.LastError, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
