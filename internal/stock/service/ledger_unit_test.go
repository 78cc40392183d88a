package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/testutil"
)

func newMockLedgerService(t *testing.T) (*service.LedgerService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	db := database.WrapExisting(mockDB.DB, logger.New("test", "test"))
	svc := service.NewLedgerService(
		db,
		repository.NewMoveRepository(db),
		repository.NewBatchRepository(db),
		repository.NewItemRepository(db),
		repository.NewLocationRepository(db),
		nil,
		logger.New("test", "test"),
	)
	return svc, mockDB
}

// Two concurrent deliveries of the same event can both pass the in-transaction
// lookup; the loser then hits the event_id unique index. That loser must come
// back as a replay of the winner's move, not as a conflict.
func TestLedgerService_EventIDRaceReturnsOriginalMove(t *testing.T) {
	svc, mockDB := newMockLedgerService(t)
	defer mockDB.Close()

	itemID := "3f0a1b2c-0000-0000-0000-000000000001"
	locID := "3f0a1b2c-0000-0000-0000-000000000002"
	batchID := "3f0a1b2c-0000-0000-0000-000000000003"
	moveID := "3f0a1b2c-0000-0000-0000-000000000004"
	eventID := "receipt-race-1"
	now := time.Now().UTC()

	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(testutil.MockRows(
			"id", "sku", "name", "unit", "min_stock", "is_active", "created_at", "updated_at",
		).AddRow(itemID, "SKU-1", "Saline", "bag", "0", true, now, now))

	mockDB.ExpectQuery("SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND is_active = true)").
		WithArgs(locID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	mockDB.ExpectBegin()

	// The winner has not committed yet, so the lookup sees nothing.
	mockDB.ExpectQuery("SELECT * FROM stock_moves WHERE event_id = $1").
		WithArgs(eventID).
		WillReturnError(sql.ErrNoRows)

	mockDB.ExpectQuery("INSERT INTO stock_batches").
		WillReturnRows(testutil.MockRows(
			"id", "item_id", "lot_no", "expiry_date", "qty_on_hand", "created_at", "updated_at",
		).AddRow(batchID, itemID, nil, nil, "10", now, now))

	mockDB.ExpectQuery("INSERT INTO stock_moves").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "stock_moves_event_id_unique"})

	mockDB.ExpectRollback()

	// After rollback the winner's row is visible.
	mockDB.ExpectQuery("SELECT * FROM stock_moves WHERE event_id = $1").
		WithArgs(eventID).
		WillReturnRows(testutil.MockRows(
			"id", "item_id", "batch_id", "from_loc_id", "to_loc_id", "qty",
			"reason", "ref_type", "ref_id", "event_id", "occurred_at", "created_at",
		).AddRow(moveID, itemID, batchID, nil, locID, "10",
			repository.ReasonReceipt, nil, nil, eventID, now, now))

	result, err := svc.RecordMove(context.Background(), &service.RecordMoveRequest{
		EventID: testutil.PtrString(eventID),
		ItemID:  itemID,
		ToLocID: testutil.PtrString(locID),
		Qty:     decimal.NewFromInt(10),
		Reason:  repository.ReasonReceipt,
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, moveID, result.Move.ID)

	mockDB.ExpectationsWereMet(t)
}
