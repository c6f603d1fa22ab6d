package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos_sync_backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist locally.
var ErrNotFound = errors.New("record not found in local store")

const cachedProductColumns = `id, name, sku, category, size, color, price, cost, image_url, stock, created_at, updated_at`

// GetProduct returns one cached product by ID.
func (s *Store) GetProduct(ctx context.Context, productID int64) (*models.CachedProduct, error) {
	query := `SELECT ` + cachedProductColumns + ` FROM cached_products WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, productID)
	product, err := scanCachedProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached product %d: %w", productID, err)
	}
	return product, nil
}

// ListProducts returns all cached products ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]models.CachedProduct, error) {
	query := `SELECT ` + cachedProductColumns + ` FROM cached_products ORDER BY name ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached products: %w", err)
	}
	defer rows.Close()

	products := []models.CachedProduct{}
	for rows.Next() {
		product, err := scanCachedProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating cached products: %w", err)
	}
	return products, nil
}

// PutProduct inserts or replaces a single cached product.
func (s *Store) PutProduct(ctx context.Context, product *models.CachedProduct) error {
	query := `INSERT OR REPLACE INTO cached_products
	          (` + cachedProductColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, product.SKU, product.Category, product.Size, product.Color,
		product.Price, product.Cost, product.ImageURL, product.Stock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cached product %d: %w", product.ID, err)
	}
	return nil
}

// SetProductStock updates only the displayed stock of a cached product.
func (s *Store) SetProductStock(ctx context.Context, productID int64, stock int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cached_products SET stock = ? WHERE id = ?`, stock, productID)
	if err != nil {
		return fmt.Errorf("failed to set stock for cached product %d: %w", productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed checking stock update for product %d: %w", productID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAllProducts atomically swaps the entire product table for the
// given set (clear + bulk insert in one transaction).
func (s *Store) ReplaceAllProducts(ctx context.Context, products []models.CachedProduct) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin product replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_products`); err != nil {
		return fmt.Errorf("failed to clear cached products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cached_products
	    (`+cachedProductColumns+`)
	    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare product insert: %w", err)
	}
	defer stmt.Close()

	for _, product := range products {
		if _, err := stmt.ExecContext(ctx,
			product.ID, product.Name, product.SKU, product.Category, product.Size, product.Color,
			product.Price, product.Cost, product.ImageURL, product.Stock, product.CreatedAt, product.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert cached product %d: %w", product.ID, err)
		}
	}

	return tx.Commit()
}

// CountProducts returns the number of cached products.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached products: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCachedProduct(row rowScanner) (*models.CachedProduct, error) {
	var product models.CachedProduct
	err := row.Scan(
		&product.ID, &product.Name, &product.SKU, &product.Category, &product.Size, &product.Color,
		&product.Price, &product.Cost, &product.ImageURL, &product.Stock, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}
