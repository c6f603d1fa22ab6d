package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos_sync_backend/internal/models"
)

// StockEventRepository defines the interface for the immutable audit log of
// stock mutations and its idempotency lookups.
type StockEventRepository interface {
	CreateEvent(executor SQLExecutor, event *models.StockEvent) (int64, error)
	GetByIdempotencyKey(executor SQLExecutor, deviceID, localEventID string) (*models.StockEvent, error)
	GetEvents(productID *int64, deviceID *string, status *string, page, pageSize int) ([]models.StockEvent, int, error)
}

type stockEventRepository struct {
	db *sql.DB
}

// NewStockEventRepository creates a new instance of StockEventRepository.
func NewStockEventRepository(db *sql.DB) StockEventRepository {
	return &stockEventRepository{db: db}
}

func (r *stockEventRepository) CreateEvent(executor SQLExecutor, event *models.StockEvent) (int64, error) {
	query := `INSERT INTO stock_events
	          (product_id, device_id, local_event_id, event_type, qty_change, status, note, error_message, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	currentTime := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = currentTime
	}

	err := executor.QueryRow(query,
		event.ProductID, event.DeviceID, event.LocalEventID, event.EventType,
		event.QtyChange, event.Status, event.Note, event.ErrorMessage, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		if isUniqueViolation(err) {
			// Duplicate (device_id, local_event_id): a concurrent delivery of
			// the same logical event won the race. Caller replays its outcome.
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("%w: creating stock event: %v", classifySQLError(err), err)
	}
	return event.ID, nil
}

func (r *stockEventRepository) GetByIdempotencyKey(executor SQLExecutor, deviceID, localEventID string) (*models.StockEvent, error) {
	var event models.StockEvent
	query := `SELECT id, product_id, device_id, local_event_id, event_type, qty_change, status, note, error_message, created_at
	          FROM stock_events
	          WHERE device_id = $1 AND local_event_id = $2`
	err := executor.QueryRow(query, deviceID, localEventID).Scan(
		&event.ID, &event.ProductID, &event.DeviceID, &event.LocalEventID, &event.EventType,
		&event.QtyChange, &event.Status, &event.Note, &event.ErrorMessage, &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: looking up event for device %s local ID %s: %v", classifySQLError(err), deviceID, localEventID, err)
	}
	return &event, nil
}

func (r *stockEventRepository) GetEvents(productID *int64, deviceID *string, status *string, page, pageSize int) ([]models.StockEvent, int, error) {
	events := []models.StockEvent{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT
	    se.id, se.product_id, se.device_id, se.local_event_id, se.event_type, se.qty_change,
	    se.status, se.note, se.error_message, se.created_at,
	    COUNT(*) OVER() AS total_count
	  FROM stock_events se`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if productID != nil {
		conditions = append(conditions, fmt.Sprintf("se.product_id = $%d", argCount))
		args = append(args, *productID)
		argCount++
	}
	if deviceID != nil && *deviceID != "" {
		conditions = append(conditions, fmt.Sprintf("se.device_id = $%d", argCount))
		args = append(args, *deviceID)
		argCount++
	}
	if status != nil && *status != "" {
		conditions = append(conditions, fmt.Sprintf("se.status = $%d", argCount))
		args = append(args, *status)
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY se.created_at DESC, se.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting stock events: %v", classifySQLError(err), err)
	}
	defer rows.Close()

	for rows.Next() {
		var event models.StockEvent
		if err := rows.Scan(
			&event.ID, &event.ProductID, &event.DeviceID, &event.LocalEventID, &event.EventType,
			&event.QtyChange, &event.Status, &event.Note, &event.ErrorMessage, &event.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning stock event: %v", classifySQLError(err), err)
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating stock events: %v", classifySQLError(err), err)
	}

	return events, totalCount, nil
}
