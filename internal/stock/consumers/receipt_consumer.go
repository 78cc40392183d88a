package consumers

import (
	"context"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/messaging"
)

// ReceiptEventConsumer turns procurement receipt events into ledger moves.
// Delivery is at-least-once; the event ID carried by each receipt makes
// replays collapse onto the originally recorded move.
type ReceiptEventConsumer struct {
	consumer *messaging.Consumer
	ledger   *service.LedgerService
	logger   *logger.Logger
}

// NewReceiptEventConsumer creates a new receipt event consumer
func NewReceiptEventConsumer(
	rmq *messaging.RabbitMQ,
	ledger *service.LedgerService,
	log *logger.Logger,
) (*ReceiptEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.procurement-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeProcurementEvents, "procurement.receipt.#"); err != nil {
		return nil, err
	}

	c := &ReceiptEventConsumer{
		consumer: consumer,
		ledger:   ledger,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventReceiptPosted, c.handleReceiptPosted)

	return c, nil
}

// Start starts consuming messages
func (c *ReceiptEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *ReceiptEventConsumer) handleReceiptPosted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ReceiptPostedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("event_id", data.EventID).
		Str("item_id", data.ItemID).
		Str("qty", data.Qty.String()).
		Msg("received receipt posted event")

	req := &service.RecordMoveRequest{
		EventID:    &data.EventID,
		ItemID:     data.ItemID,
		LotNo:      data.LotNo,
		ExpiryDate: data.ExpiryDate,
		ToLocID:    &data.ToLocID,
		Qty:        data.Qty,
		Reason:     "RECEIPT",
	}
	if data.RefType != "" {
		req.RefType = &data.RefType
	}
	if data.RefID != "" {
		req.RefID = &data.RefID
	}

	result, err := c.ledger.RecordMove(ctx, req)
	if err != nil {
		// Malformed receipts will never succeed; don't let them cycle
		// through the retry queue.
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			c.logger.Error().Err(err).Str("event_id", data.EventID).Msg("dropping unprocessable receipt event")
			return nil
		}
		return err
	}

	if result.Replayed {
		c.logger.Info().Str("event_id", data.EventID).Msg("receipt event already recorded, skipped")
	}
	return nil
}
