package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// CatalogService manages the master data the engine moves stock against:
// items, locations, and the threshold rules the monitor evaluates.
type CatalogService struct {
	itemRepo      *repository.ItemRepository
	locationRepo  *repository.LocationRepository
	thresholdRepo *repository.ThresholdRepository
	logger        *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	itemRepo *repository.ItemRepository,
	locationRepo *repository.LocationRepository,
	thresholdRepo *repository.ThresholdRepository,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		itemRepo:      itemRepo,
		locationRepo:  locationRepo,
		thresholdRepo: thresholdRepo,
		logger:        log,
	}
}

// Item operations

// CreateItem creates a new item
func (s *CatalogService) CreateItem(ctx context.Context, item *repository.Item) error {
	return s.itemRepo.Create(ctx, item)
}

// GetItem gets an item by ID
func (s *CatalogService) GetItem(ctx context.Context, id string) (*repository.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// ListItems lists all items
func (s *CatalogService) ListItems(ctx context.Context) ([]*repository.Item, error) {
	return s.itemRepo.List(ctx)
}

// UpdateItem updates an item
func (s *CatalogService) UpdateItem(ctx context.Context, item *repository.Item) error {
	return s.itemRepo.Update(ctx, item)
}

// DeactivateItem soft-deletes an item. Its ledger history and batches
// remain untouched.
func (s *CatalogService) DeactivateItem(ctx context.Context, id string) error {
	return s.itemRepo.Deactivate(ctx, id)
}

// Location operations

// CreateLocation creates a new location
func (s *CatalogService) CreateLocation(ctx context.Context, loc *repository.Location) error {
	return s.locationRepo.Create(ctx, loc)
}

// GetLocation gets a location by ID
func (s *CatalogService) GetLocation(ctx context.Context, id string) (*repository.Location, error) {
	return s.locationRepo.GetByID(ctx, id)
}

// ListLocations lists all locations
func (s *CatalogService) ListLocations(ctx context.Context) ([]*repository.Location, error) {
	return s.locationRepo.List(ctx)
}

// UpdateLocation updates a location
func (s *CatalogService) UpdateLocation(ctx context.Context, loc *repository.Location) error {
	return s.locationRepo.Update(ctx, loc)
}

// DeactivateLocation soft-deletes a location
func (s *CatalogService) DeactivateLocation(ctx context.Context, id string) error {
	return s.locationRepo.Deactivate(ctx, id)
}

// Threshold operations

// CreateThreshold creates a new threshold rule
func (s *CatalogService) CreateThreshold(ctx context.Context, threshold *repository.Threshold) error {
	if !threshold.MinQty.IsPositive() {
		return errors.Validation(map[string]string{"min_qty": "must be greater than zero"})
	}
	if _, err := s.itemRepo.GetByID(ctx, threshold.ItemID); err != nil {
		return err
	}
	if threshold.LocationID != nil {
		if _, err := s.locationRepo.GetByID(ctx, *threshold.LocationID); err != nil {
			return err
		}
	}
	return s.thresholdRepo.Create(ctx, threshold)
}

// GetThreshold gets a threshold rule by ID
func (s *CatalogService) GetThreshold(ctx context.Context, id string) (*repository.Threshold, error) {
	return s.thresholdRepo.GetByID(ctx, id)
}

// ListThresholds lists the threshold rules of an item, or all rules when
// itemID is empty
func (s *CatalogService) ListThresholds(ctx context.Context, itemID string) ([]*repository.Threshold, error) {
	if itemID == "" {
		return s.thresholdRepo.ListAll(ctx)
	}
	return s.thresholdRepo.ListByItem(ctx, itemID)
}

// UpdateThreshold changes the minimum quantity of a rule
func (s *CatalogService) UpdateThreshold(ctx context.Context, id string, minQty decimal.Decimal) (*repository.Threshold, error) {
	if !minQty.IsPositive() {
		return nil, errors.Validation(map[string]string{"min_qty": "must be greater than zero"})
	}
	return s.thresholdRepo.Update(ctx, id, minQty)
}

// DeleteThreshold removes a threshold rule
func (s *CatalogService) DeleteThreshold(ctx context.Context, id string) error {
	return s.thresholdRepo.Delete(ctx, id)
}
