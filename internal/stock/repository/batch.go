package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// StockBatch is a depletable pool of one item sharing a lot number and
// expiry date. Identity is (item_id, lot_no, expiry_date); rows are created
// lazily on first receipt and never deleted, so depleted batches stay
// visible for audit.
type StockBatch struct {
	ID         string          `db:"id" json:"id"`
	ItemID     string          `db:"item_id" json:"item_id"`
	LotNo      *string         `db:"lot_no" json:"lot_no,omitempty"`
	ExpiryDate *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	QtyOnHand  decimal.Decimal `db:"qty_on_hand" json:"qty_on_hand"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// UpsertOnReceipt resolves the batch for (itemID, lotNo, expiryDate) and
// increments its on-hand quantity in a single statement. The ON CONFLICT
// path makes first receipts of the same lot race-free under concurrency:
// two concurrent callers both land on the same row, one creating it and
// the other incrementing it.
func (r *BatchRepository) UpsertOnReceipt(ctx context.Context, q database.Queryer, itemID string, lotNo *string, expiryDate *time.Time, qty decimal.Decimal) (*StockBatch, error) {
	var batch StockBatch
	query := `
		INSERT INTO stock_batches (item_id, lot_no, expiry_date, qty_on_hand)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id, COALESCE(lot_no, ''), COALESCE(expiry_date, 'infinity'::date))
		DO UPDATE SET
			qty_on_hand = stock_batches.qty_on_hand + EXCLUDED.qty_on_hand,
			updated_at = NOW()
		RETURNING *
	`
	if err := q.GetContext(ctx, &batch, query, itemID, lotNo, expiryDate, qty); err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetForUpdate locks and returns a batch by ID inside the given transaction.
func (r *BatchRepository) GetForUpdate(ctx context.Context, q database.Queryer, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// FindByIdentityForUpdate locks and returns the batch matching the
// (itemID, lotNo, expiryDate) identity tuple, or NotFound.
func (r *BatchRepository) FindByIdentityForUpdate(ctx context.Context, q database.Queryer, itemID string, lotNo *string, expiryDate *time.Time) (*StockBatch, error) {
	var batch StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE item_id = $1
		AND COALESCE(lot_no, '') = COALESCE($2, '')
		AND COALESCE(expiry_date, 'infinity'::date) = COALESCE($3, 'infinity'::date)
		FOR UPDATE
	`
	if err := q.GetContext(ctx, &batch, query, itemID, lotNo, expiryDate); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListForAllocation returns all batches of an item with stock remaining,
// locked for the duration of the transaction, in FEFO order: ascending
// expiry date, undated batches last, ties broken by id so the order is
// deterministic.
func (r *BatchRepository) ListForAllocation(ctx context.Context, q database.Queryer, itemID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE item_id = $1 AND qty_on_hand > 0
		ORDER BY expiry_date ASC NULLS LAST, id ASC
		FOR UPDATE
	`
	if err := q.SelectContext(ctx, &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// Decrement subtracts qty from a batch, guarded so the quantity can never
// go negative. Returns InsufficientStock when the guard rejects the update.
// Row-level serialization on the batch row makes the check-and-decrement
// atomic against concurrent writers.
func (r *BatchRepository) Decrement(ctx context.Context, q database.Queryer, batchID string, qty decimal.Decimal) error {
	query := `
		UPDATE stock_batches
		SET qty_on_hand = qty_on_hand - $2, updated_at = NOW()
		WHERE id = $1 AND qty_on_hand >= $2
	`
	result, err := q.ExecContext(ctx, query, batchID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InsufficientStock()
	}

	return nil
}

// ListByItem lists batches for an item, FEFO-ordered
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE item_id = $1
		ORDER BY expiry_date ASC NULLS LAST, id ASC
	`
	if err := r.db.SelectContext(ctx, &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// TotalOnHand sums on-hand across all batches of an item
func (r *BatchRepository) TotalOnHand(ctx context.Context, itemID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `SELECT SUM(qty_on_hand) FROM stock_batches WHERE item_id = $1`
	if err := r.db.GetContext(ctx, &total, query, itemID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// TotalOnHandForLot sums on-hand across the batches of an item carrying
// the given lot number
func (r *BatchRepository) TotalOnHandForLot(ctx context.Context, itemID, lotNo string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `SELECT SUM(qty_on_hand) FROM stock_batches WHERE item_id = $1 AND lot_no = $2`
	if err := r.db.GetContext(ctx, &total, query, itemID, lotNo); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ItemLevel is the aggregated on-hand position of one item
type ItemLevel struct {
	ItemID     string          `db:"item_id" json:"item_id"`
	SKU        string          `db:"sku" json:"sku"`
	Name       string          `db:"name" json:"name"`
	Unit       string          `db:"unit" json:"unit"`
	QtyOnHand  decimal.Decimal `db:"qty_on_hand" json:"qty_on_hand"`
	BatchCount int             `db:"batch_count" json:"batch_count"`
}

// ListLevels aggregates on-hand per item across all batches. Items with no
// batches yet report zero.
func (r *BatchRepository) ListLevels(ctx context.Context) ([]*ItemLevel, error) {
	var levels []*ItemLevel
	query := `
		SELECT i.id AS item_id, i.sku, i.name, i.unit,
		       COALESCE(SUM(b.qty_on_hand), 0) AS qty_on_hand,
		       COUNT(b.id) AS batch_count
		FROM items i
		LEFT JOIN stock_batches b ON b.item_id = i.id
		WHERE i.is_active = TRUE
		GROUP BY i.id, i.sku, i.name, i.unit
		ORDER BY i.sku
	`
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, err
	}
	return levels, nil
}

// GetExpiringBatches gets non-empty batches whose expiry date falls within
// the given horizon
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, withinDays int) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE qty_on_hand > 0
		AND expiry_date IS NOT NULL
		AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}
