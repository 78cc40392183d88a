package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// LevelsService answers on-hand questions. The batch aggregates are the
// fast path; the ledger recompute exists to prove them right.
type LevelsService struct {
	batchRepo *repository.BatchRepository
	moveRepo  *repository.MoveRepository
	itemRepo  *repository.ItemRepository
	logger    *logger.Logger
}

// NewLevelsService creates a new levels service
func NewLevelsService(
	batchRepo *repository.BatchRepository,
	moveRepo *repository.MoveRepository,
	itemRepo *repository.ItemRepository,
	log *logger.Logger,
) *LevelsService {
	return &LevelsService{
		batchRepo: batchRepo,
		moveRepo:  moveRepo,
		itemRepo:  itemRepo,
		logger:    log,
	}
}

// StockLevel is the on-hand position of one item, optionally narrowed to
// a location or a lot
type StockLevel struct {
	ItemID     string          `json:"item_id"`
	LocationID *string         `json:"location_id,omitempty"`
	LotNo      *string         `json:"lot_no,omitempty"`
	QtyOnHand  decimal.Decimal `json:"qty_on_hand"`
}

// LevelAudit compares the batch aggregates to a full ledger recompute
type LevelAudit struct {
	ItemID      string          `json:"item_id"`
	BatchTotal  decimal.Decimal `json:"batch_total"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	Consistent  bool            `json:"consistent"`
}

// ListLevels returns the aggregated position of every active item
func (s *LevelsService) ListLevels(ctx context.Context) ([]*repository.ItemLevel, error) {
	return s.batchRepo.ListLevels(ctx)
}

// OnHand returns the total on-hand for an item from the batch aggregates
func (s *LevelsService) OnHand(ctx context.Context, itemID string) (*StockLevel, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	total, err := s.batchRepo.TotalOnHand(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &StockLevel{ItemID: itemID, QtyOnHand: total}, nil
}

// OnHandAtLocation recomputes the on-hand for an item at one location from
// the ledger. Batches carry no location, so the ledger is the only source
// for per-location positions.
func (s *LevelsService) OnHandAtLocation(ctx context.Context, itemID, locationID string) (*StockLevel, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	total, err := s.moveRepo.SumForItemAtLocation(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	return &StockLevel{ItemID: itemID, LocationID: &locationID, QtyOnHand: total}, nil
}

// OnHandForLot sums the on-hand of an item's batches carrying one lot
// number. A lot can span several batches when receipts carried different
// expiry dates.
func (s *LevelsService) OnHandForLot(ctx context.Context, itemID, lotNo string) (*StockLevel, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	total, err := s.batchRepo.TotalOnHandForLot(ctx, itemID, lotNo)
	if err != nil {
		return nil, err
	}
	return &StockLevel{ItemID: itemID, LotNo: &lotNo, QtyOnHand: total}, nil
}

// Audit recomputes an item's on-hand from the full ledger and compares it
// to the batch aggregates. The two must agree; a mismatch means a write
// escaped the transactional path.
func (s *LevelsService) Audit(ctx context.Context, itemID string) (*LevelAudit, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	batchTotal, err := s.batchRepo.TotalOnHand(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ledgerTotal, err := s.moveRepo.SumForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	audit := &LevelAudit{
		ItemID:      itemID,
		BatchTotal:  batchTotal,
		LedgerTotal: ledgerTotal,
		Consistent:  batchTotal.Equal(ledgerTotal),
	}
	if !audit.Consistent {
		s.logger.Error().
			Str("item_id", itemID).
			Str("batch_total", batchTotal.String()).
			Str("ledger_total", ledgerTotal.String()).
			Msg("ledger and batch aggregates disagree")
	}
	return audit, nil
}

// ListBatches lists the batches of an item, expiry ascending
func (s *LevelsService) ListBatches(ctx context.Context, itemID string) ([]*repository.StockBatch, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListByItem(ctx, itemID)
}

// ExpiringBatches reports non-empty batches expiring within the horizon
func (s *LevelsService) ExpiringBatches(ctx context.Context, withinDays int) ([]*repository.StockBatch, error) {
	if withinDays <= 0 {
		withinDays = 90
	}
	return s.batchRepo.GetExpiringBatches(ctx, withinDays)
}
