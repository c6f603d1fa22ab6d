package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/repositories"
	"pos_sync_backend/pkg/utils"
)

// --- Data Transfer Objects (DTOs) ---

// CreateProductRequest is used for creating a new catalog product.
type CreateProductRequest struct {
	Name     string   `json:"name" binding:"required"`
	SKU      string   `json:"sku" binding:"required"`
	Category *string  `json:"category"`
	Size     *string  `json:"size"`
	Color    *string  `json:"color"`
	Price    float64  `json:"price" binding:"required,gt=0"`
	Cost     *float64 `json:"cost"`
	ImageURL *string  `json:"image_url"`
}

// UpdateProductRequest is used for updating an existing product.
type UpdateProductRequest struct {
	Name     *string  `json:"name"`
	SKU      *string  `json:"sku"`
	Category *string  `json:"category"`
	Size     *string  `json:"size"`
	Color    *string  `json:"color"`
	Price    *float64 `json:"price"`
	Cost     *float64 `json:"cost"`
	ImageURL *string  `json:"image_url"`
}

// --- ProductService Interface ---

// ProductService manages the authoritative product catalog.
type ProductService interface {
	CreateProduct(req CreateProductRequest) (*models.Product, error)
	GetProductByID(productID int64) (*models.Product, error)
	GetAllProducts() ([]models.Product, error)
	UpdateProduct(productID int64, req UpdateProductRequest) (*models.Product, error)
	DeleteProduct(productID int64) error
}

// --- productService Implementation ---

type productService struct {
	productRepo repositories.ProductRepository
	stockRepo   repositories.StockRepository
	db          *sql.DB
}

// NewProductService creates a new instance of ProductService.
func NewProductService(pr repositories.ProductRepository, sr repositories.StockRepository, db *sql.DB) ProductService {
	return &productService{productRepo: pr, stockRepo: sr, db: db}
}

func (s *productService) CreateProduct(req CreateProductRequest) (*models.Product, error) {
	if utils.IsEmpty(req.Name) {
		return nil, fmt.Errorf("%w: product name cannot be empty", ErrValidation)
	}
	if utils.IsEmpty(req.SKU) {
		return nil, fmt.Errorf("%w: product SKU cannot be empty", ErrValidation)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	product := models.Product{
		Name:     strings.TrimSpace(req.Name),
		SKU:      strings.TrimSpace(req.SKU),
		Category: req.Category,
		Size:     req.Size,
		Color:    req.Color,
		Price:    req.Price,
		Cost:     req.Cost,
		ImageURL: req.ImageURL,
	}
	if _, err := s.productRepo.CreateProduct(tx, &product); err != nil {
		return nil, err
	}
	// New products start with an explicit zero-stock row.
	if err := s.stockRepo.EnsureStockRow(tx, product.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return &product, nil
}

func (s *productService) GetProductByID(productID int64) (*models.Product, error) {
	product, err := s.productRepo.GetProductByID(productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: product ID %d", ErrProductNotFound, productID)
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) GetAllProducts() ([]models.Product, error) {
	return s.productRepo.GetAllProducts()
}

func (s *productService) UpdateProduct(productID int64, req UpdateProductRequest) (*models.Product, error) {
	product, err := s.GetProductByID(productID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if utils.IsEmpty(*req.Name) {
			return nil, fmt.Errorf("%w: product name cannot be empty if provided", ErrValidation)
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.SKU != nil {
		if utils.IsEmpty(*req.SKU) {
			return nil, fmt.Errorf("%w: product SKU cannot be empty if provided", ErrValidation)
		}
		product.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Category != nil {
		product.Category = req.Category
	}
	if req.Size != nil {
		product.Size = req.Size
	}
	if req.Color != nil {
		product.Color = req.Color
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
		}
		product.Price = *req.Price
	}
	if req.Cost != nil {
		product.Cost = req.Cost
	}
	if req.ImageURL != nil {
		product.ImageURL = req.ImageURL
	}

	if err := s.productRepo.UpdateProduct(s.db, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: product ID %d", ErrProductNotFound, productID)
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) DeleteProduct(productID int64) error {
	err := s.productRepo.DeleteProduct(s.db, productID)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: product ID %d", ErrProductNotFound, productID)
	}
	return err
}
