package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Issue groups lines requesting stock moved from one location to another.
// Lines are fulfilled all-or-nothing: a shortfall on any line rolls back
// the whole issue.
type Issue struct {
	ID        string       `db:"id" json:"id"`
	IssueNo   string       `db:"issue_no" json:"issue_no"`
	FromLocID string       `db:"from_loc_id" json:"from_loc_id"`
	ToLocID   string       `db:"to_loc_id" json:"to_loc_id"`
	Status    string       `db:"status" json:"status"`
	Notes     *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	Lines     []*IssueLine `db:"-" json:"lines,omitempty"`
}

// IssueLine is one item/quantity request within an issue
type IssueLine struct {
	ID           string             `db:"id" json:"id"`
	IssueID      string             `db:"issue_id" json:"issue_id"`
	ItemID       string             `db:"item_id" json:"item_id"`
	RequestedQty decimal.Decimal    `db:"requested_qty" json:"requested_qty"`
	FulfilledQty decimal.Decimal    `db:"fulfilled_qty" json:"fulfilled_qty"`
	Notes        *string            `db:"notes" json:"notes,omitempty"`
	Allocations  []*IssueAllocation `db:"-" json:"allocations,omitempty"`
}

// IssueAllocation records how much of a line was taken from which batch,
// preserving the audit trail for multi-batch fulfillment.
type IssueAllocation struct {
	ID          string          `db:"id" json:"id"`
	IssueLineID string          `db:"issue_line_id" json:"issue_line_id"`
	BatchID     string          `db:"batch_id" json:"batch_id"`
	QtyConsumed decimal.Decimal `db:"qty_consumed" json:"qty_consumed"`
}

// IssueRepository handles issue persistence
type IssueRepository struct {
	db *database.DB
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *database.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// InsertIssue inserts the issue header
func (r *IssueRepository) InsertIssue(ctx context.Context, q database.Queryer, issue *Issue) error {
	query := `
		INSERT INTO issues (issue_no, from_loc_id, to_loc_id, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	row := q.QueryRowxContext(ctx, query,
		issue.IssueNo, issue.FromLocID, issue.ToLocID, issue.Status, issue.Notes,
	)
	return row.Scan(&issue.ID, &issue.CreatedAt)
}

// InsertLine inserts an issue line
func (r *IssueRepository) InsertLine(ctx context.Context, q database.Queryer, line *IssueLine) error {
	query := `
		INSERT INTO issue_lines (issue_id, item_id, requested_qty, fulfilled_qty, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	row := q.QueryRowxContext(ctx, query,
		line.IssueID, line.ItemID, line.RequestedQty, line.FulfilledQty, line.Notes,
	)
	return row.Scan(&line.ID)
}

// InsertAllocation records one batch consumption for a line
func (r *IssueRepository) InsertAllocation(ctx context.Context, q database.Queryer, alloc *IssueAllocation) error {
	query := `
		INSERT INTO issue_allocations (issue_line_id, batch_id, qty_consumed)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	row := q.QueryRowxContext(ctx, query, alloc.IssueLineID, alloc.BatchID, alloc.QtyConsumed)
	return row.Scan(&alloc.ID)
}

// GetByID loads an issue with its lines and allocations
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*Issue, error) {
	var issue Issue
	query := `SELECT * FROM issues WHERE id = $1`
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("issue")
		}
		return nil, err
	}

	linesQuery := `SELECT * FROM issue_lines WHERE issue_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &issue.Lines, linesQuery, id); err != nil {
		return nil, err
	}

	for _, line := range issue.Lines {
		allocQuery := `SELECT * FROM issue_allocations WHERE issue_line_id = $1 ORDER BY id`
		if err := r.db.SelectContext(ctx, &line.Allocations, allocQuery, line.ID); err != nil {
			return nil, err
		}
	}

	return &issue, nil
}

// List lists issues, newest first
func (r *IssueRepository) List(ctx context.Context, limit, offset int) ([]*Issue, error) {
	var issues []*Issue
	query := `SELECT * FROM issues ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &issues, query, limit, offset); err != nil {
		return nil, err
	}
	return issues, nil
}
