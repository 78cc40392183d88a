package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Transfer moves stock between two storage locations. Like an issue it
// consumes from the shared batch pool in expiry order; the destination
// side lives in the ledger rows, which carry both locations.
type Transfer struct {
	ID         string          `db:"id" json:"id"`
	TransferNo string          `db:"transfer_no" json:"transfer_no"`
	FromLocID  string          `db:"from_loc_id" json:"from_loc_id"`
	ToLocID    string          `db:"to_loc_id" json:"to_loc_id"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	Lines      []*TransferLine `db:"-" json:"lines,omitempty"`
}

// TransferLine is one item/quantity within a transfer
type TransferLine struct {
	ID             string          `db:"id" json:"id"`
	TransferID     string          `db:"transfer_id" json:"transfer_id"`
	ItemID         string          `db:"item_id" json:"item_id"`
	RequestedQty   decimal.Decimal `db:"requested_qty" json:"requested_qty"`
	TransferredQty decimal.Decimal `db:"transferred_qty" json:"transferred_qty"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
}

// TransferRepository handles transfer persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// InsertTransfer inserts the transfer header
func (r *TransferRepository) InsertTransfer(ctx context.Context, q database.Queryer, transfer *Transfer) error {
	query := `
		INSERT INTO transfers (transfer_no, from_loc_id, to_loc_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	row := q.QueryRowxContext(ctx, query,
		transfer.TransferNo, transfer.FromLocID, transfer.ToLocID, transfer.Status,
	)
	return row.Scan(&transfer.ID, &transfer.CreatedAt)
}

// InsertLine inserts a transfer line
func (r *TransferRepository) InsertLine(ctx context.Context, q database.Queryer, line *TransferLine) error {
	query := `
		INSERT INTO transfer_lines (transfer_id, item_id, requested_qty, transferred_qty, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	row := q.QueryRowxContext(ctx, query,
		line.TransferID, line.ItemID, line.RequestedQty, line.TransferredQty, line.Notes,
	)
	return row.Scan(&line.ID)
}

// GetByID loads a transfer with its lines
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*Transfer, error) {
	var transfer Transfer
	query := `SELECT * FROM transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}

	linesQuery := `SELECT * FROM transfer_lines WHERE transfer_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &transfer.Lines, linesQuery, id); err != nil {
		return nil, err
	}

	return &transfer, nil
}

// List lists transfers, newest first
func (r *TransferRepository) List(ctx context.Context, limit, offset int) ([]*Transfer, error) {
	var transfers []*Transfer
	query := `SELECT * FROM transfers ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &transfers, query, limit, offset); err != nil {
		return nil, err
	}
	return transfers, nil
}
