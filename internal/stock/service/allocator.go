package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/events"
	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// AllocatorService fulfils issues and transfers by consuming batches in
// first-expire-first-out order. Fulfilment is all-or-nothing: a shortfall
// on any line rolls back every batch decrement and ledger entry of the
// request.
type AllocatorService struct {
	db           *database.DB
	batchRepo    *repository.BatchRepository
	moveRepo     *repository.MoveRepository
	issueRepo    *repository.IssueRepository
	transferRepo *repository.TransferRepository
	itemRepo     *repository.ItemRepository
	locationRepo *repository.LocationRepository
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
}

// NewAllocatorService creates a new allocator service
func NewAllocatorService(
	db *database.DB,
	batchRepo *repository.BatchRepository,
	moveRepo *repository.MoveRepository,
	issueRepo *repository.IssueRepository,
	transferRepo *repository.TransferRepository,
	itemRepo *repository.ItemRepository,
	locationRepo *repository.LocationRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *AllocatorService {
	return &AllocatorService{
		db:           db,
		batchRepo:    batchRepo,
		moveRepo:     moveRepo,
		issueRepo:    issueRepo,
		transferRepo: transferRepo,
		itemRepo:     itemRepo,
		locationRepo: locationRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// LineRequest is one item/quantity pair in an issue or transfer
type LineRequest struct {
	ItemID string          `json:"item_id" validate:"required,uuid"`
	Qty    decimal.Decimal `json:"qty"`
	Notes  *string         `json:"notes" validate:"omitempty,max=500"`
}

// CreateIssueRequest asks for stock to be issued from one location to
// another, e.g. from central pharmacy to a ward.
type CreateIssueRequest struct {
	IssueNo   string        `json:"issue_no" validate:"omitempty,max=100"`
	FromLocID string        `json:"from_loc_id" validate:"required,uuid"`
	ToLocID   string        `json:"to_loc_id" validate:"required,uuid"`
	Notes     *string       `json:"notes" validate:"omitempty,max=500"`
	Lines     []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateTransferRequest moves stock between two storage locations
type CreateTransferRequest struct {
	TransferNo string        `json:"transfer_no" validate:"omitempty,max=100"`
	FromLocID  string        `json:"from_loc_id" validate:"required,uuid"`
	ToLocID    string        `json:"to_loc_id" validate:"required,uuid"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// allocation is one batch consumption produced while fulfilling a line
type allocation struct {
	batch *repository.StockBatch
	qty   decimal.Decimal
}

// CreateIssue fulfils an issue request FEFO-wise in a single transaction
func (s *AllocatorService) CreateIssue(ctx context.Context, req *CreateIssueRequest) (*repository.Issue, error) {
	if err := s.validateLines(ctx, req.FromLocID, req.ToLocID, req.Lines); err != nil {
		return nil, err
	}

	issue := &repository.Issue{
		IssueNo:   req.IssueNo,
		FromLocID: req.FromLocID,
		ToLocID:   req.ToLocID,
		Status:    "fulfilled",
		Notes:     req.Notes,
	}
	if issue.IssueNo == "" {
		issue.IssueNo = fmt.Sprintf("ISS-%d", time.Now().UnixNano())
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.issueRepo.InsertIssue(ctx, tx, issue); err != nil {
			return err
		}

		for _, lineReq := range req.Lines {
			line := &repository.IssueLine{
				IssueID:      issue.ID,
				ItemID:       lineReq.ItemID,
				RequestedQty: lineReq.Qty,
				Notes:        lineReq.Notes,
			}
			if err := s.issueRepo.InsertLine(ctx, tx, line); err != nil {
				return err
			}

			refType := "issue"
			allocs, err := s.allocateLine(ctx, tx, lineReq.ItemID, lineReq.Qty,
				req.FromLocID, req.ToLocID, repository.ReasonIssue, refType, issue.ID)
			if err != nil {
				return err
			}

			for _, alloc := range allocs {
				issueAlloc := &repository.IssueAllocation{
					IssueLineID: line.ID,
					BatchID:     alloc.batch.ID,
					QtyConsumed: alloc.qty,
				}
				if err := s.issueRepo.InsertAllocation(ctx, tx, issueAlloc); err != nil {
					return err
				}
				line.Allocations = append(line.Allocations, issueAlloc)
				line.FulfilledQty = line.FulfilledQty.Add(alloc.qty)
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE issue_lines SET fulfilled_qty = $2 WHERE id = $1`,
				line.ID, line.FulfilledQty); err != nil {
				return err
			}

			issue.Lines = append(issue.Lines, line)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("issue_id", issue.ID).
		Str("issue_no", issue.IssueNo).
		Int("lines", len(issue.Lines)).
		Msg("issue fulfilled")
	s.publisher.PublishIssueFulfilled(ctx, issue)

	return issue, nil
}

// CreateTransfer fulfils a transfer request FEFO-wise in a single transaction
func (s *AllocatorService) CreateTransfer(ctx context.Context, req *CreateTransferRequest) (*repository.Transfer, error) {
	if err := s.validateLines(ctx, req.FromLocID, req.ToLocID, req.Lines); err != nil {
		return nil, err
	}

	transfer := &repository.Transfer{
		TransferNo: req.TransferNo,
		FromLocID:  req.FromLocID,
		ToLocID:    req.ToLocID,
		Status:     "completed",
	}
	if transfer.TransferNo == "" {
		transfer.TransferNo = fmt.Sprintf("TRF-%d", time.Now().UnixNano())
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.transferRepo.InsertTransfer(ctx, tx, transfer); err != nil {
			return err
		}

		for _, lineReq := range req.Lines {
			line := &repository.TransferLine{
				TransferID:   transfer.ID,
				ItemID:       lineReq.ItemID,
				RequestedQty: lineReq.Qty,
				Notes:        lineReq.Notes,
			}
			if err := s.transferRepo.InsertLine(ctx, tx, line); err != nil {
				return err
			}

			allocs, err := s.allocateLine(ctx, tx, lineReq.ItemID, lineReq.Qty,
				req.FromLocID, req.ToLocID, repository.ReasonTransfer, "transfer", transfer.ID)
			if err != nil {
				return err
			}

			for _, alloc := range allocs {
				line.TransferredQty = line.TransferredQty.Add(alloc.qty)
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE transfer_lines SET transferred_qty = $2 WHERE id = $1`,
				line.ID, line.TransferredQty); err != nil {
				return err
			}

			transfer.Lines = append(transfer.Lines, line)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("transfer_no", transfer.TransferNo).
		Int("lines", len(transfer.Lines)).
		Msg("transfer completed")
	s.publisher.PublishTransferCompleted(ctx, transfer)

	return transfer, nil
}

// allocateLine consumes batches for one line in expiry order. Batches are
// locked up front so concurrent allocations serialize per item; ties on
// expiry fall back to insertion order via the id sort. Returns the batch
// consumptions, or InsufficientStock when the batches cannot cover the
// quantity.
func (s *AllocatorService) allocateLine(
	ctx context.Context,
	tx *sqlx.Tx,
	itemID string,
	qty decimal.Decimal,
	fromLocID, toLocID, reason, refType, refID string,
) ([]allocation, error) {
	batches, err := s.batchRepo.ListForAllocation(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	remaining := qty
	var allocs []allocation

	for _, batch := range batches {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(remaining, batch.QtyOnHand)
		if err := s.batchRepo.Decrement(ctx, tx, batch.ID, take); err != nil {
			return nil, err
		}

		move := &repository.StockMove{
			ItemID:    itemID,
			BatchID:   &batch.ID,
			FromLocID: &fromLocID,
			ToLocID:   &toLocID,
			Qty:       take,
			Reason:    reason,
			RefType:   &refType,
			RefID:     &refID,
		}
		if err := s.moveRepo.Insert(ctx, tx, move); err != nil {
			return nil, err
		}

		allocs = append(allocs, allocation{batch: batch, qty: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, errors.InsufficientStock()
	}

	return allocs, nil
}

// validateLines checks locations and per-line quantities before any write
func (s *AllocatorService) validateLines(ctx context.Context, fromLocID, toLocID string, lines []LineRequest) error {
	if len(lines) == 0 {
		return errors.Validation(map[string]string{"lines": "at least one line is required"})
	}
	if fromLocID == toLocID {
		return errors.Validation(map[string]string{"to_loc_id": "source and destination must differ"})
	}

	for _, locID := range []string{fromLocID, toLocID} {
		ok, err := s.locationRepo.Exists(ctx, s.db, locID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NotFound("location")
		}
	}

	for i, line := range lines {
		if !line.Qty.IsPositive() {
			return errors.Validation(map[string]string{
				fmt.Sprintf("lines[%d].qty", i): "must be greater than zero",
			})
		}
		ok, err := s.itemRepo.Exists(ctx, s.db, line.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NotFound("item")
		}
	}

	return nil
}

// GetIssue returns an issue with lines and allocations
func (s *AllocatorService) GetIssue(ctx context.Context, id string) (*repository.Issue, error) {
	return s.issueRepo.GetByID(ctx, id)
}

// ListIssues lists issues, newest first
func (s *AllocatorService) ListIssues(ctx context.Context, limit, offset int) ([]*repository.Issue, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.issueRepo.List(ctx, limit, offset)
}

// GetTransfer returns a transfer with lines
func (s *AllocatorService) GetTransfer(ctx context.Context, id string) (*repository.Transfer, error) {
	return s.transferRepo.GetByID(ctx, id)
}

// ListTransfers lists transfers, newest first
func (s *AllocatorService) ListTransfers(ctx context.Context, limit, offset int) ([]*repository.Transfer, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.transferRepo.List(ctx, limit, offset)
}
