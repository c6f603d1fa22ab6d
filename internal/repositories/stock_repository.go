package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos_sync_backend/internal/models"
)

// StockRepository defines the interface for authoritative stock rows.
// The FOR UPDATE methods are meant to be called inside a transaction; the
// row lock they take is what serializes concurrent mutations per product.
type StockRepository interface {
	EnsureStockRow(executor SQLExecutor, productID int64) error
	GetStockForUpdate(executor SQLExecutor, productID int64) (int, error)
	SetStock(executor SQLExecutor, productID int64, quantity int) error
	GetAllSnapshots() (models.StockSnapshot, error)
}

type stockRepository struct {
	db *sql.DB
}

// NewStockRepository creates a new instance of StockRepository.
func NewStockRepository(db *sql.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) EnsureStockRow(executor SQLExecutor, productID int64) error {
	// Initialize to 0 if absent; a concurrent insert loses silently.
	query := `INSERT INTO product_stock (product_id, quantity, updated_at)
	          VALUES ($1, 0, $2)
	          ON CONFLICT (product_id) DO NOTHING`
	_, err := executor.Exec(query, productID, time.Now())
	if err != nil {
		return fmt.Errorf("%w: ensuring stock row for product ID %d: %v", classifySQLError(err), productID, err)
	}
	return nil
}

func (r *stockRepository) GetStockForUpdate(executor SQLExecutor, productID int64) (int, error) {
	var quantity int
	query := `SELECT quantity FROM product_stock WHERE product_id = $1 FOR UPDATE`
	err := executor.QueryRow(query, productID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: locking stock row for product ID %d: %v", classifySQLError(err), productID, err)
	}
	return quantity, nil
}

func (r *stockRepository) SetStock(executor SQLExecutor, productID int64, quantity int) error {
	result, err := executor.Exec(
		`UPDATE product_stock SET quantity = $1, updated_at = $2 WHERE product_id = $3`,
		quantity, time.Now(), productID,
	)
	if err != nil {
		return fmt.Errorf("%w: setting stock for product ID %d: %v", classifySQLError(err), productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking stock update for product ID %d: %v", classifySQLError(err), productID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *stockRepository) GetAllSnapshots() (models.StockSnapshot, error) {
	snapshot := models.StockSnapshot{}
	rows, err := r.db.Query(`SELECT product_id, quantity FROM product_stock`)
	if err != nil {
		return nil, fmt.Errorf("%w: getting stock snapshots: %v", classifySQLError(err), err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var quantity int
		if err := rows.Scan(&productID, &quantity); err != nil {
			return nil, fmt.Errorf("%w: scanning stock snapshot: %v", classifySQLError(err), err)
		}
		snapshot[productID] = quantity
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock snapshots: %v", classifySQLError(err), err)
	}
	return snapshot, nil
}
