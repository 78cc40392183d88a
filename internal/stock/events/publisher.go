package events

import (
	"context"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events. A nil publisher is
// valid and drops everything, which keeps services testable without a
// broker.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMoveRecorded publishes a move recorded event
func (p *StockEventPublisher) PublishMoveRecorded(ctx context.Context, move *repository.StockMove) {
	if p == nil {
		return
	}

	data := messaging.MoveRecordedEvent{
		MoveID: move.ID,
		ItemID: move.ItemID,
		Qty:    move.Qty,
		Reason: move.Reason,
	}
	if move.BatchID != nil {
		data.BatchID = *move.BatchID
	}
	if move.FromLocID != nil {
		data.FromLocID = *move.FromLocID
	}
	if move.ToLocID != nil {
		data.ToLocID = *move.ToLocID
	}
	if move.EventID != nil {
		data.EventID = *move.EventID
	}

	if err := p.publisher.Publish(ctx, messaging.EventMoveRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("move_id", move.ID).Msg("failed to publish move recorded event")
	}
}

// PublishIssueFulfilled publishes an issue fulfilled event
func (p *StockEventPublisher) PublishIssueFulfilled(ctx context.Context, issue *repository.Issue) {
	if p == nil {
		return
	}

	data := messaging.IssueFulfilledEvent{
		IssueID:   issue.ID,
		IssueNo:   issue.IssueNo,
		FromLocID: issue.FromLocID,
		ToLocID:   issue.ToLocID,
		LineCount: len(issue.Lines),
	}

	if err := p.publisher.Publish(ctx, messaging.EventIssueFulfilled, data); err != nil {
		p.logger.Error().Err(err).Str("issue_id", issue.ID).Msg("failed to publish issue fulfilled event")
	}
}

// PublishTransferCompleted publishes a transfer completed event
func (p *StockEventPublisher) PublishTransferCompleted(ctx context.Context, transfer *repository.Transfer) {
	if p == nil {
		return
	}

	data := messaging.TransferCompletedEvent{
		TransferID: transfer.ID,
		TransferNo: transfer.TransferNo,
		FromLocID:  transfer.FromLocID,
		ToLocID:    transfer.ToLocID,
		LineCount:  len(transfer.Lines),
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer completed event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *StockEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.Alert) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		Message:   alert.Message,
		ItemID:    alert.ItemID,
	}
	if alert.LocationID != nil {
		data.LocationID = *alert.LocationID
	}
	if alert.BatchID != nil {
		data.BatchID = *alert.BatchID
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

// PublishAlertResolved publishes an alert resolved event
func (p *StockEventPublisher) PublishAlertResolved(ctx context.Context, alert *repository.Alert, resolvedBy string) {
	if p == nil {
		return
	}

	data := messaging.AlertResolvedEvent{
		AlertID:    alert.ID,
		AlertType:  alert.AlertType,
		ResolvedBy: resolvedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertResolved, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert resolved event")
	}
}
