package services

import (
	"database/sql"
	"errors"
	"fmt"

	"pos_sync_backend/internal/models"
	"pos_sync_backend/internal/repositories"
)

// Custom Errors
var (
	ErrValidation      = errors.New("validation error")
	ErrProductNotFound = errors.New("product not found")
	ErrEventNotFound   = errors.New("stock event not found")
)

// conflictMessage is the explanation stored on rejected events.
func conflictMessage(current, change int) string {
	return fmt.Sprintf("insufficient stock: have %d, change %d would go negative", current, change)
}

// --- InventoryService Interface ---

// InventoryService applies inventory events against the authoritative stock
// store and serves the bulk reads clients use for cache refreshes.
type InventoryService interface {
	// ApplyInventoryEvent atomically applies a quantity delta to a product's
	// stock. Concurrent calls for the same product are serialized by a row
	// lock; calls carrying a (device_id, local_event_id) pair already seen
	// return the stored outcome without re-applying the delta.
	ApplyInventoryEvent(req models.ApplyInventoryEventRequest) (*models.ApplyInventoryEventResult, error)

	GetAllProducts() ([]models.Product, error)
	GetAllStockSnapshots() (models.StockSnapshot, error)
	GetStockEvents(productID *int64, deviceID *string, status *string, page, pageSize int) ([]models.StockEvent, int, error)
}

// --- inventoryService Implementation ---

type inventoryService struct {
	productRepo    repositories.ProductRepository
	stockRepo      repositories.StockRepository
	stockEventRepo repositories.StockEventRepository
	db             *sql.DB // For managing transactions
}

// NewInventoryService creates a new instance of InventoryService.
func NewInventoryService(
	pr repositories.ProductRepository,
	sr repositories.StockRepository,
	ser repositories.StockEventRepository,
	db *sql.DB,
) InventoryService {
	return &inventoryService{
		productRepo:    pr,
		stockRepo:      sr,
		stockEventRepo: ser,
		db:             db,
	}
}

func (s *inventoryService) ApplyInventoryEvent(req models.ApplyInventoryEventRequest) (*models.ApplyInventoryEventResult, error) {
	if !models.IsValidEventType(req.EventType) {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrValidation, req.EventType)
	}
	if req.QtyChange == 0 {
		return nil, fmt.Errorf("%w: qty_change must be non-zero", ErrValidation)
	}
	if _, err := s.productRepo.GetProductByID(req.ProductID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: product ID %d", ErrProductNotFound, req.ProductID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", req.ProductID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.stockRepo.EnsureStockRow(tx, req.ProductID); err != nil {
		return nil, err
	}

	// Row lock: serializes concurrent applies for this product until commit.
	currentStock, err := s.stockRepo.GetStockForUpdate(tx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock for product %d: %w", req.ProductID, err)
	}

	// Idempotency check: a replayed (device_id, local_event_id) returns the
	// stored outcome verbatim, with no second stock effect.
	hasIdempotencyKey := req.DeviceID != nil && *req.DeviceID != "" && req.LocalEventID != nil && *req.LocalEventID != ""
	if hasIdempotencyKey {
		prior, lookupErr := s.stockEventRepo.GetByIdempotencyKey(tx, *req.DeviceID, *req.LocalEventID)
		if lookupErr == nil {
			return s.replayOutcome(tx, prior)
		}
		if !errors.Is(lookupErr, repositories.ErrNotFound) {
			return nil, fmt.Errorf("idempotency lookup failed: %w", lookupErr)
		}
	}

	newStock := currentStock + req.QtyChange
	event := models.StockEvent{
		ProductID:    req.ProductID,
		DeviceID:     req.DeviceID,
		LocalEventID: req.LocalEventID,
		EventType:    req.EventType,
		QtyChange:    req.QtyChange,
		Note:         req.Note,
	}

	resultingStock := currentStock
	if newStock < 0 {
		event.Status = models.ApplyStatusConflict
		msg := conflictMessage(currentStock, req.QtyChange)
		event.ErrorMessage = &msg
	} else {
		event.Status = models.ApplyStatusApplied
		if err := s.stockRepo.SetStock(tx, req.ProductID, newStock); err != nil {
			return nil, fmt.Errorf("failed to update stock for product %d: %w", req.ProductID, err)
		}
		resultingStock = newStock
	}

	// Audit row is appended whether the event applied or conflicted.
	if _, err := s.stockEventRepo.CreateEvent(tx, &event); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) && hasIdempotencyKey {
			// Lost a race with a duplicate delivery of the same logical
			// event. Abandon this attempt and replay the winner's outcome.
			_ = tx.Rollback()
			return s.replayWinner(*req.DeviceID, *req.LocalEventID)
		}
		return nil, fmt.Errorf("failed to record stock event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock event: %w", err)
	}

	return &models.ApplyInventoryEventResult{
		EventID:      event.ID,
		NewStock:     resultingStock,
		Status:       event.Status,
		ErrorMessage: event.ErrorMessage,
	}, nil
}

// replayOutcome resolves the resulting stock for a previously recorded event
// and returns its stored outcome unchanged.
func (s *inventoryService) replayOutcome(executor repositories.SQLExecutor, prior *models.StockEvent) (*models.ApplyInventoryEventResult, error) {
	currentStock, err := s.stockRepo.GetStockForUpdate(executor, prior.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock for replay of event %d: %w", prior.ID, err)
	}
	return &models.ApplyInventoryEventResult{
		EventID:      prior.ID,
		NewStock:     currentStock,
		Status:       prior.Status,
		ErrorMessage: prior.ErrorMessage,
	}, nil
}

// replayWinner fetches the outcome recorded by a concurrent duplicate
// delivery, outside the aborted transaction.
func (s *inventoryService) replayWinner(deviceID, localEventID string) (*models.ApplyInventoryEventResult, error) {
	prior, err := s.stockEventRepo.GetByIdempotencyKey(s.db, deviceID, localEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch winning duplicate event: %w", err)
	}
	currentStock, err := s.stockRepo.GetStockForUpdate(s.db, prior.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock after duplicate event: %w", err)
	}
	return &models.ApplyInventoryEventResult{
		EventID:      prior.ID,
		NewStock:     currentStock,
		Status:       prior.Status,
		ErrorMessage: prior.ErrorMessage,
	}, nil
}

func (s *inventoryService) GetAllProducts() ([]models.Product, error) {
	return s.productRepo.GetAllProducts()
}

func (s *inventoryService) GetAllStockSnapshots() (models.StockSnapshot, error) {
	return s.stockRepo.GetAllSnapshots()
}

func (s *inventoryService) GetStockEvents(productID *int64, deviceID *string, status *string, page, pageSize int) ([]models.StockEvent, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.stockEventRepo.GetEvents(productID, deviceID, status, page, pageSize)
}
