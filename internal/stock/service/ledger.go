package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/events"
	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// LedgerService records stock moves. Every quantity change in the system
// goes through here: a move is appended to the ledger and the affected
// batch aggregate is adjusted in the same transaction.
type LedgerService struct {
	db           *database.DB
	moveRepo     *repository.MoveRepository
	batchRepo    *repository.BatchRepository
	itemRepo     *repository.ItemRepository
	locationRepo *repository.LocationRepository
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	moveRepo *repository.MoveRepository,
	batchRepo *repository.BatchRepository,
	itemRepo *repository.ItemRepository,
	locationRepo *repository.LocationRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		moveRepo:     moveRepo,
		batchRepo:    batchRepo,
		itemRepo:     itemRepo,
		locationRepo: locationRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// RecordMoveRequest is the input for recording a single stock move
type RecordMoveRequest struct {
	EventID    *string         `json:"event_id" validate:"omitempty,max=255"`
	ItemID     string          `json:"item_id" validate:"required,uuid"`
	BatchID    *string         `json:"batch_id" validate:"omitempty,uuid"`
	LotNo      *string         `json:"lot_no" validate:"omitempty,max=100"`
	ExpiryDate *time.Time      `json:"expiry_date"`
	FromLocID  *string         `json:"from_loc_id" validate:"omitempty,uuid"`
	ToLocID    *string         `json:"to_loc_id" validate:"omitempty,uuid"`
	Qty        decimal.Decimal `json:"qty"`
	Reason     string          `json:"reason" validate:"required,oneof=RECEIPT ISSUE TRANSFER ADJUSTMENT"`
	RefType    *string         `json:"ref_type" validate:"omitempty,max=50"`
	RefID      *string         `json:"ref_id" validate:"omitempty,max=255"`
	OccurredAt *time.Time      `json:"occurred_at"`
}

// RecordMoveResult is the outcome of a record call. Replayed is true when
// the event ID matched an already-recorded move and nothing was written.
type RecordMoveResult struct {
	Move     *repository.StockMove `json:"move"`
	Replayed bool                  `json:"replayed"`
}

// RecordMove validates and records one stock move atomically. When the
// request carries an event ID that the ledger has already seen, the
// original move is returned unchanged and no state is touched.
func (s *LedgerService) RecordMove(ctx context.Context, req *RecordMoveRequest) (*RecordMoveResult, error) {
	if err := s.validateMove(ctx, req); err != nil {
		return nil, err
	}

	var result RecordMoveResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if req.EventID != nil {
			existing, err := s.moveRepo.GetByEventID(ctx, tx, *req.EventID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Move = existing
				result.Replayed = true
				return nil
			}
		}

		move, err := s.recordInTx(ctx, tx, req)
		if err != nil {
			return err
		}
		result.Move = move
		return nil
	})
	if err != nil {
		// A concurrent delivery of the same event can slip past the in-tx
		// lookup and lose the race on the event_id index at commit. That is
		// still a replay: return the move the winner recorded.
		if req.EventID != nil && database.IsUniqueViolation(err, "event_id") {
			existing, getErr := s.moveRepo.GetByEventID(ctx, s.db, *req.EventID)
			if getErr == nil && existing != nil {
				return &RecordMoveResult{Move: existing, Replayed: true}, nil
			}
		}
		return nil, err
	}

	if !result.Replayed {
		s.logger.Info().
			Str("move_id", result.Move.ID).
			Str("item_id", result.Move.ItemID).
			Str("reason", result.Move.Reason).
			Str("qty", result.Move.Qty.String()).
			Msg("stock move recorded")
		s.publisher.PublishMoveRecorded(ctx, result.Move)
	}

	return &result, nil
}

// recordInTx resolves the batch, adjusts its quantity, and appends the
// ledger entry. Callers own the transaction.
func (s *LedgerService) recordInTx(ctx context.Context, tx *sqlx.Tx, req *RecordMoveRequest) (*repository.StockMove, error) {
	batch, err := s.resolveBatch(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	// Inbound-only moves already increased the batch via the upsert.
	// Everything with a source location decrements its batch; the guarded
	// update turns a shortfall into a conflict without partial writes.
	if req.FromLocID != nil {
		if err := s.batchRepo.Decrement(ctx, tx, batch.ID, req.Qty); err != nil {
			return nil, err
		}
	}

	move := &repository.StockMove{
		ItemID:    req.ItemID,
		BatchID:   &batch.ID,
		FromLocID: req.FromLocID,
		ToLocID:   req.ToLocID,
		Qty:       req.Qty,
		Reason:    req.Reason,
		RefType:   req.RefType,
		RefID:     req.RefID,
		EventID:   req.EventID,
	}
	if req.OccurredAt != nil {
		move.OccurredAt = *req.OccurredAt
	}

	if err := s.moveRepo.Insert(ctx, tx, move); err != nil {
		// Keep event_id unique violations raw so RecordMove can map the
		// race back to the replay path.
		if database.IsUniqueViolation(err, "event_id") {
			return nil, err
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return move, nil
}

// resolveBatch finds or creates the batch a move applies to. Resolution
// order: explicit batch ID, then (lot, expiry) identity, then for outbound
// moves the first batch in expiry order able to cover the quantity.
func (s *LedgerService) resolveBatch(ctx context.Context, tx *sqlx.Tx, req *RecordMoveRequest) (*repository.StockBatch, error) {
	if req.BatchID != nil {
		batch, err := s.batchRepo.GetForUpdate(ctx, tx, *req.BatchID)
		if err != nil {
			return nil, err
		}
		if batch.ItemID != req.ItemID {
			return nil, errors.Validation(map[string]string{"batch_id": "batch does not belong to the given item"})
		}
		if req.FromLocID == nil {
			// Receipt into a known batch still needs the quantity added.
			return s.batchRepo.UpsertOnReceipt(ctx, tx, req.ItemID, batch.LotNo, batch.ExpiryDate, req.Qty)
		}
		return batch, nil
	}

	if req.FromLocID == nil {
		// Receipts create the batch lazily. The upsert is atomic, so two
		// concurrent first receipts of the same lot converge on one row.
		return s.batchRepo.UpsertOnReceipt(ctx, tx, req.ItemID, req.LotNo, req.ExpiryDate, req.Qty)
	}

	if req.LotNo != nil || req.ExpiryDate != nil {
		batch, err := s.batchRepo.FindByIdentityForUpdate(ctx, tx, req.ItemID, req.LotNo, req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		return batch, nil
	}

	// No batch hint on an outbound move: take the earliest-expiring batch
	// that can cover the full quantity.
	batches, err := s.batchRepo.ListForAllocation(ctx, tx, req.ItemID)
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		if batch.QtyOnHand.GreaterThanOrEqual(req.Qty) {
			return batch, nil
		}
	}
	return nil, errors.InsufficientStock()
}

// validateMove checks the request shape and referenced entities
func (s *LedgerService) validateMove(ctx context.Context, req *RecordMoveRequest) error {
	if !req.Qty.IsPositive() {
		return errors.Validation(map[string]string{"qty": "must be greater than zero"})
	}
	if req.FromLocID == nil && req.ToLocID == nil {
		return errors.Validation(map[string]string{"from_loc_id": "at least one of from_loc_id or to_loc_id is required"})
	}

	item, err := s.itemRepo.GetByID(ctx, req.ItemID)
	if err != nil {
		return err
	}
	if !item.IsActive {
		return errors.Validation(map[string]string{"item_id": "item is inactive"})
	}

	for _, locID := range []*string{req.FromLocID, req.ToLocID} {
		if locID == nil {
			continue
		}
		ok, err := s.locationRepo.Exists(ctx, s.db, *locID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NotFound("location")
		}
	}

	return nil
}

// GetMove returns a single ledger entry
func (s *LedgerService) GetMove(ctx context.Context, id string) (*repository.StockMove, error) {
	return s.moveRepo.GetByID(ctx, id)
}

// ListMoves lists ledger entries for an item, newest first
func (s *LedgerService) ListMoves(ctx context.Context, itemID string, limit, offset int) ([]*repository.StockMove, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.moveRepo.ListByItem(ctx, itemID, limit, offset)
}
