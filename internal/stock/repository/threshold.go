package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Threshold is a minimum-quantity rule for an item. A nil LocationID means
// the rule applies to the item's total on-hand across all locations.
type Threshold struct {
	ID         string          `db:"id" json:"id"`
	ItemID     string          `db:"item_id" json:"item_id"`
	LocationID *string         `db:"location_id" json:"location_id,omitempty"`
	MinQty     decimal.Decimal `db:"min_qty" json:"min_qty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ThresholdRepository handles threshold persistence
type ThresholdRepository struct {
	db *database.DB
}

// NewThresholdRepository creates a new threshold repository
func NewThresholdRepository(db *database.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// Create creates a new threshold rule
func (r *ThresholdRepository) Create(ctx context.Context, threshold *Threshold) error {
	query := `
		INSERT INTO stock_thresholds (item_id, location_id, min_qty)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query, threshold.ItemID, threshold.LocationID, threshold.MinQty)
	if err := row.Scan(&threshold.ID, &threshold.CreatedAt, &threshold.UpdatedAt); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID retrieves a threshold by ID
func (r *ThresholdRepository) GetByID(ctx context.Context, id string) (*Threshold, error) {
	var threshold Threshold
	query := `SELECT * FROM stock_thresholds WHERE id = $1`
	if err := r.db.GetContext(ctx, &threshold, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("threshold")
		}
		return nil, err
	}
	return &threshold, nil
}

// ListAll returns every threshold rule, for the monitor scan
func (r *ThresholdRepository) ListAll(ctx context.Context) ([]*Threshold, error) {
	var thresholds []*Threshold
	query := `SELECT * FROM stock_thresholds ORDER BY item_id, location_id NULLS FIRST`
	if err := r.db.SelectContext(ctx, &thresholds, query); err != nil {
		return nil, err
	}
	return thresholds, nil
}

// ListByItem returns the threshold rules for one item
func (r *ThresholdRepository) ListByItem(ctx context.Context, itemID string) ([]*Threshold, error) {
	var thresholds []*Threshold
	query := `SELECT * FROM stock_thresholds WHERE item_id = $1 ORDER BY location_id NULLS FIRST`
	if err := r.db.SelectContext(ctx, &thresholds, query, itemID); err != nil {
		return nil, err
	}
	return thresholds, nil
}

// Update changes the minimum quantity of a rule
func (r *ThresholdRepository) Update(ctx context.Context, id string, minQty decimal.Decimal) (*Threshold, error) {
	var threshold Threshold
	query := `
		UPDATE stock_thresholds
		SET min_qty = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &threshold, query, id, minQty); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("threshold")
		}
		return nil, err
	}
	return &threshold, nil
}

// Delete removes a threshold rule
func (r *ThresholdRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stock_thresholds WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("threshold")
	}
	return nil
}
