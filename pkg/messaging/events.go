package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	// Ledger events
	EventMoveRecorded      = "stock.move.recorded"
	EventIssueFulfilled    = "stock.issue.fulfilled"
	EventTransferCompleted = "stock.transfer.completed"

	// Alert events
	EventAlertGenerated = "stock.alert.generated"
	EventAlertResolved  = "stock.alert.resolved"

	// Events consumed from the procurement/receiving system
	EventReceiptPosted = "procurement.receipt.posted"
)

// Exchange names
const (
	ExchangeStockEvents       = "stock.events"
	ExchangeProcurementEvents = "procurement.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Ledger events

// MoveRecordedEvent is published after a stock move commits
type MoveRecordedEvent struct {
	MoveID    string          `json:"move_id"`
	ItemID    string          `json:"item_id"`
	BatchID   string          `json:"batch_id,omitempty"`
	FromLocID string          `json:"from_loc_id,omitempty"`
	ToLocID   string          `json:"to_loc_id,omitempty"`
	Qty       decimal.Decimal `json:"qty"`
	Reason    string          `json:"reason"`
	EventID   string          `json:"event_id,omitempty"`
}

// IssueFulfilledEvent is published after an issue is fully allocated
type IssueFulfilledEvent struct {
	IssueID   string `json:"issue_id"`
	IssueNo   string `json:"issue_no"`
	FromLocID string `json:"from_loc_id"`
	ToLocID   string `json:"to_loc_id"`
	LineCount int    `json:"line_count"`
}

// TransferCompletedEvent is published after a transfer is fully allocated
type TransferCompletedEvent struct {
	TransferID string `json:"transfer_id"`
	TransferNo string `json:"transfer_no"`
	FromLocID  string `json:"from_loc_id"`
	ToLocID    string `json:"to_loc_id"`
	LineCount  int    `json:"line_count"`
}

// Alert events

// AlertGeneratedEvent is published when the monitor creates an alert
type AlertGeneratedEvent struct {
	AlertID    string `json:"alert_id"`
	AlertType  string `json:"alert_type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	ItemID     string `json:"item_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	BatchID    string `json:"batch_id,omitempty"`
}

// AlertResolvedEvent is published when an alert is resolved
type AlertResolvedEvent struct {
	AlertID    string `json:"alert_id"`
	AlertType  string `json:"alert_type"`
	ResolvedBy string `json:"resolved_by"`
}

// Procurement events (consumed)

// ReceiptPostedEvent is emitted by the procurement system when goods are
// received. EventID is the idempotency key: the ledger must record at most
// one move per receipt line even when delivery is retried.
type ReceiptPostedEvent struct {
	EventID    string          `json:"event_id"`
	ItemID     string          `json:"item_id"`
	Qty        decimal.Decimal `json:"qty"`
	ToLocID    string          `json:"to_loc_id"`
	LotNo      *string         `json:"lot_no,omitempty"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	RefType    string          `json:"ref_type,omitempty"`
	RefID      string          `json:"ref_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
