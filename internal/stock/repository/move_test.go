package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/testutil"
)

func TestMoveRepository_Insert(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-insert")
	loc := createTestLocation(t, ctx, "Central Store", repository.LocationKindStorage)
	repo := repository.NewMoveRepository(suite.DB)

	move := &repository.StockMove{
		ItemID:  item.ID,
		ToLocID: &loc.ID,
		Qty:     decimal.NewFromInt(20),
		Reason:  repository.ReasonReceipt,
	}
	require.NoError(t, repo.Insert(ctx, suite.DB, move))
	assert.NotEmpty(t, move.ID)
	assert.False(t, move.OccurredAt.IsZero())
	assert.False(t, move.CreatedAt.IsZero())
}

func TestMoveRepository_EventIDIsUnique(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-event-unique")
	loc := createTestLocation(t, ctx, "Receiving Dock", repository.LocationKindStorage)
	repo := repository.NewMoveRepository(suite.DB)

	eventID := "evt-12345"
	first := &repository.StockMove{
		ItemID:  item.ID,
		ToLocID: &loc.ID,
		Qty:     decimal.NewFromInt(10),
		Reason:  repository.ReasonReceipt,
		EventID: &eventID,
	}
	require.NoError(t, repo.Insert(ctx, suite.DB, first))

	duplicate := &repository.StockMove{
		ItemID:  item.ID,
		ToLocID: &loc.ID,
		Qty:     decimal.NewFromInt(10),
		Reason:  repository.ReasonReceipt,
		EventID: &eventID,
	}
	err := repo.Insert(ctx, suite.DB, duplicate)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, "stock_moves_event_id_unique"))
}

func TestMoveRepository_GetByEventID(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-get-event")
	loc := createTestLocation(t, ctx, "Ward 3", repository.LocationKindWard)
	repo := repository.NewMoveRepository(suite.DB)

	missing, err := repo.GetByEventID(ctx, suite.DB, "evt-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	eventID := "evt-known"
	move := &repository.StockMove{
		ItemID:  item.ID,
		ToLocID: &loc.ID,
		Qty:     decimal.NewFromInt(5),
		Reason:  repository.ReasonReceipt,
		EventID: &eventID,
	}
	require.NoError(t, repo.Insert(ctx, suite.DB, move))

	got, err := repo.GetByEventID(ctx, suite.DB, eventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, move.ID, got.ID)
}

func TestMoveRepository_SumForItem_SignRule(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-sum")
	store := createTestLocation(t, ctx, "Store", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward", repository.LocationKindWard)
	repo := repository.NewMoveRepository(suite.DB)

	// Inbound 100, outbound 30: a move with a source location consumed
	// stock regardless of whether a destination is present.
	require.NoError(t, repo.Insert(ctx, suite.DB, &repository.StockMove{
		ItemID: item.ID, ToLocID: &store.ID,
		Qty: decimal.NewFromInt(100), Reason: repository.ReasonReceipt,
	}))
	require.NoError(t, repo.Insert(ctx, suite.DB, &repository.StockMove{
		ItemID: item.ID, FromLocID: &store.ID, ToLocID: &ward.ID,
		Qty: decimal.NewFromInt(30), Reason: repository.ReasonIssue,
	}))

	total, err := repo.SumForItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(70)))
}

func TestMoveRepository_SumForItemAtLocation(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-sum-loc")
	store := createTestLocation(t, ctx, "Main Store", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "ICU", repository.LocationKindWard)
	repo := repository.NewMoveRepository(suite.DB)

	require.NoError(t, repo.Insert(ctx, suite.DB, &repository.StockMove{
		ItemID: item.ID, ToLocID: &store.ID,
		Qty: decimal.NewFromInt(50), Reason: repository.ReasonReceipt,
	}))
	require.NoError(t, repo.Insert(ctx, suite.DB, &repository.StockMove{
		ItemID: item.ID, FromLocID: &store.ID, ToLocID: &ward.ID,
		Qty: decimal.NewFromInt(20), Reason: repository.ReasonTransfer,
	}))

	atStore, err := repo.SumForItemAtLocation(ctx, item.ID, store.ID)
	require.NoError(t, err)
	assert.True(t, atStore.Equal(decimal.NewFromInt(30)))

	atWard, err := repo.SumForItemAtLocation(ctx, item.ID, ward.ID)
	require.NoError(t, err)
	assert.True(t, atWard.Equal(decimal.NewFromInt(20)))
}

func TestMoveRepository_ListByItem_NewestFirst(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "move-list")
	loc := createTestLocation(t, ctx, "Pharmacy", repository.LocationKindPharmacy)
	repo := repository.NewMoveRepository(suite.DB)

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Insert(ctx, suite.DB, &repository.StockMove{
			ItemID: item.ID, ToLocID: &loc.ID,
			Qty: decimal.NewFromInt(int64(i)), Reason: repository.ReasonReceipt,
		}))
	}

	moves, err := repo.ListByItem(ctx, item.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.True(t, moves[0].OccurredAt.After(moves[1].OccurredAt) || moves[0].OccurredAt.Equal(moves[1].OccurredAt))
}
