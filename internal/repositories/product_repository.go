package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos_sync_backend/internal/models"
)

// ProductRepository defines the interface for product catalog database operations.
type ProductRepository interface {
	CreateProduct(executor SQLExecutor, product *models.Product) (int64, error)
	GetProductByID(productID int64) (*models.Product, error)
	GetAllProducts() ([]models.Product, error)
	UpdateProduct(executor SQLExecutor, product *models.Product) error
	DeleteProduct(executor SQLExecutor, productID int64) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, sku, category, size, color, price, cost, image_url, created_at, updated_at`

func (r *productRepository) CreateProduct(executor SQLExecutor, product *models.Product) (int64, error) {
	query := `INSERT INTO products (name, sku, category, size, color, price, cost, image_url, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`
	currentTime := time.Now()
	err := executor.QueryRow(query,
		product.Name, product.SKU, product.Category, product.Size, product.Color,
		product.Price, product.Cost, product.ImageURL, currentTime, currentTime,
	).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: product with SKU %s already exists", ErrDuplicateKey, product.SKU)
		}
		return 0, fmt.Errorf("%w: creating product: %v", classifySQLError(err), err)
	}
	product.CreatedAt = currentTime
	product.UpdatedAt = currentTime
	return product.ID, nil
}

func (r *productRepository) GetProductByID(productID int64) (*models.Product, error) {
	var product models.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	err := r.db.QueryRow(query, productID).Scan(
		&product.ID, &product.Name, &product.SKU, &product.Category, &product.Size, &product.Color,
		&product.Price, &product.Cost, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting product ID %d: %v", classifySQLError(err), productID, err)
	}
	return &product, nil
}

func (r *productRepository) GetAllProducts() ([]models.Product, error) {
	products := []models.Product{}
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name ASC, id ASC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: getting products: %v", classifySQLError(err), err)
	}
	defer rows.Close()

	for rows.Next() {
		var product models.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.SKU, &product.Category, &product.Size, &product.Color,
			&product.Price, &product.Cost, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning product: %v", classifySQLError(err), err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating products: %v", classifySQLError(err), err)
	}
	return products, nil
}

func (r *productRepository) UpdateProduct(executor SQLExecutor, product *models.Product) error {
	query := `UPDATE products
	          SET name = $1, sku = $2, category = $3, size = $4, color = $5, price = $6, cost = $7, image_url = $8, updated_at = $9
	          WHERE id = $10`
	currentTime := time.Now()
	result, err := executor.Exec(query,
		product.Name, product.SKU, product.Category, product.Size, product.Color,
		product.Price, product.Cost, product.ImageURL, currentTime, product.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: product with SKU %s already exists", ErrDuplicateKey, product.SKU)
		}
		return fmt.Errorf("%w: updating product ID %d: %v", classifySQLError(err), product.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking update result for product ID %d: %v", classifySQLError(err), product.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	product.UpdatedAt = currentTime
	return nil
}

func (r *productRepository) DeleteProduct(executor SQLExecutor, productID int64) error {
	result, err := executor.Exec(`DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("%w: deleting product ID %d: %v", classifySQLError(err), productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking delete result for product ID %d: %v", classifySQLError(err), productID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
