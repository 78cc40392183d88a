package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Move reasons
const (
	ReasonReceipt    = "RECEIPT"
	ReasonIssue      = "ISSUE"
	ReasonTransfer   = "TRANSFER"
	ReasonAdjustment = "ADJUSTMENT"
)

// StockMove is one immutable entry in the append-only movement ledger.
// At least one of FromLocID/ToLocID is set. EventID, when present, is the
// caller-supplied idempotency key and is unique across the ledger.
type StockMove struct {
	ID         string          `db:"id" json:"id"`
	ItemID     string          `db:"item_id" json:"item_id"`
	BatchID    *string         `db:"batch_id" json:"batch_id,omitempty"`
	FromLocID  *string         `db:"from_loc_id" json:"from_loc_id,omitempty"`
	ToLocID    *string         `db:"to_loc_id" json:"to_loc_id,omitempty"`
	Qty        decimal.Decimal `db:"qty" json:"qty"`
	Reason     string          `db:"reason" json:"reason"`
	RefType    *string         `db:"ref_type" json:"ref_type,omitempty"`
	RefID      *string         `db:"ref_id" json:"ref_id,omitempty"`
	EventID    *string         `db:"event_id" json:"event_id,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// MoveRepository handles ledger persistence. Moves are append-only: there
// is deliberately no update or delete.
type MoveRepository struct {
	db *database.DB
}

// NewMoveRepository creates a new move repository
func NewMoveRepository(db *database.DB) *MoveRepository {
	return &MoveRepository{db: db}
}

// Insert appends a move to the ledger
func (r *MoveRepository) Insert(ctx context.Context, q database.Queryer, move *StockMove) error {
	if move.OccurredAt.IsZero() {
		move.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stock_moves (
			item_id, batch_id, from_loc_id, to_loc_id, qty, reason,
			ref_type, ref_id, event_id, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	row := q.QueryRowxContext(ctx, query,
		move.ItemID, move.BatchID, move.FromLocID, move.ToLocID, move.Qty,
		move.Reason, move.RefType, move.RefID, move.EventID, move.OccurredAt,
	)
	return row.Scan(&move.ID, &move.CreatedAt)
}

// GetByID retrieves a single ledger entry
func (r *MoveRepository) GetByID(ctx context.Context, id string) (*StockMove, error) {
	var move StockMove
	query := `SELECT * FROM stock_moves WHERE id = $1`
	if err := r.db.GetContext(ctx, &move, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("move")
		}
		return nil, err
	}
	return &move, nil
}

// GetByEventID returns the move recorded for an idempotency key, or nil
// when no such move exists.
func (r *MoveRepository) GetByEventID(ctx context.Context, q database.Queryer, eventID string) (*StockMove, error) {
	var move StockMove
	query := `SELECT * FROM stock_moves WHERE event_id = $1`
	if err := q.GetContext(ctx, &move, query, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &move, nil
}

// ListByItem lists ledger entries for an item, newest first
func (r *MoveRepository) ListByItem(ctx context.Context, itemID string, limit, offset int) ([]*StockMove, error) {
	var moves []*StockMove
	query := `
		SELECT * FROM stock_moves
		WHERE item_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &moves, query, itemID, limit, offset); err != nil {
		return nil, err
	}
	return moves, nil
}

// SumForItem recomputes the on-hand quantity of an item from the full
// ledger. A move with no source location is inbound (+qty); everything
// with a source location consumed stock (-qty). This must reproduce the
// sum of the item's batch aggregates exactly.
func (r *MoveRepository) SumForItem(ctx context.Context, itemID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `
		SELECT SUM(CASE WHEN from_loc_id IS NULL THEN qty ELSE -qty END)
		FROM stock_moves
		WHERE item_id = $1
	`
	if err := r.db.GetContext(ctx, &total, query, itemID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// SumForBatch recomputes the on-hand quantity of a single batch from the
// ledger, same signing rule as SumForItem.
func (r *MoveRepository) SumForBatch(ctx context.Context, batchID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `
		SELECT SUM(CASE WHEN from_loc_id IS NULL THEN qty ELSE -qty END)
		FROM stock_moves
		WHERE batch_id = $1
	`
	if err := r.db.GetContext(ctx, &total, query, batchID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// SumForItemAtLocation computes the on-hand quantity of an item at one
// location: +qty for moves into the location, -qty for moves out of it.
func (r *MoveRepository) SumForItemAtLocation(ctx context.Context, itemID, locationID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `
		SELECT SUM(
			CASE
				WHEN to_loc_id = $2 AND (from_loc_id IS NULL OR from_loc_id <> $2) THEN qty
				WHEN from_loc_id = $2 AND (to_loc_id IS NULL OR to_loc_id <> $2) THEN -qty
				ELSE 0
			END
		)
		FROM stock_moves
		WHERE item_id = $1
	`
	if err := r.db.GetContext(ctx, &total, query, itemID, locationID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
