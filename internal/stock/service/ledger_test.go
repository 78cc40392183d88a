package service_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func newLedgerService() *service.LedgerService {
	lg := logger.New("test", "test")
	return service.NewLedgerService(
		suite.DB,
		repository.NewMoveRepository(suite.DB),
		repository.NewBatchRepository(suite.DB),
		repository.NewItemRepository(suite.DB),
		repository.NewLocationRepository(suite.DB),
		nil, // no event publisher needed for service tests
		lg,
	)
}

var fixtures = testutil.NewFixtureFactory()

func createTestItem(t *testing.T, ctx context.Context, name string) *repository.Item {
	t.Helper()
	fx := fixtures.Item()
	repo := repository.NewItemRepository(suite.DB)
	item := &repository.Item{
		SKU:      fx.SKU,
		Name:     name,
		Unit:     fx.Unit,
		MinStock: fx.MinStock,
		IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, item))
	return item
}

func createTestLocation(t *testing.T, ctx context.Context, name, kind string) *repository.Location {
	t.Helper()
	fx := fixtures.Location(kind)
	repo := repository.NewLocationRepository(suite.DB)
	loc := &repository.Location{
		Name:     name,
		Kind:     fx.Kind,
		IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, loc))
	return loc
}

// receive is a shortcut for recording a receipt into a fresh or existing batch
func receive(t *testing.T, ctx context.Context, svc *service.LedgerService, itemID, toLoc string, qty int64, lotNo string, expiryDays int) *repository.StockMove {
	t.Helper()
	req := &service.RecordMoveRequest{
		ItemID:  itemID,
		ToLocID: &toLoc,
		Qty:     decimal.NewFromInt(qty),
		Reason:  repository.ReasonReceipt,
	}
	if lotNo != "" {
		req.LotNo = &lotNo
	}
	if expiryDays != 0 {
		req.ExpiryDate = testutil.DaysFromNow(expiryDays)
	}
	result, err := svc.RecordMove(ctx, req)
	require.NoError(t, err)
	require.False(t, result.Replayed)
	return result.Move
}

func TestLedgerService_ReceiptCreatesBatchLazily(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-receipt")
	store := createTestLocation(t, ctx, "Store A", repository.LocationKindStorage)
	svc := newLedgerService()

	move := receive(t, ctx, svc, item.ID, store.ID, 40, "LOT-1", 120)
	require.NotNil(t, move.BatchID)

	batchRepo := repository.NewBatchRepository(suite.DB)
	batch, err := batchRepo.GetByID(ctx, *move.BatchID)
	require.NoError(t, err)
	assert.True(t, batch.QtyOnHand.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, batch.LotNo)
	assert.Equal(t, "LOT-1", *batch.LotNo)
}

func TestLedgerService_ReceiptSameLotAccumulates(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-accumulate")
	store := createTestLocation(t, ctx, "Store B", repository.LocationKindStorage)
	svc := newLedgerService()

	first := receive(t, ctx, svc, item.ID, store.ID, 10, "LOT-X", 60)
	second := receive(t, ctx, svc, item.ID, store.ID, 5, "LOT-X", 60)
	assert.Equal(t, *first.BatchID, *second.BatchID)

	batchRepo := repository.NewBatchRepository(suite.DB)
	batch, err := batchRepo.GetByID(ctx, *first.BatchID)
	require.NoError(t, err)
	assert.True(t, batch.QtyOnHand.Equal(decimal.NewFromInt(15)))
}

func TestLedgerService_IdempotentReplay(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-idempotent")
	store := createTestLocation(t, ctx, "Store C", repository.LocationKindStorage)
	svc := newLedgerService()

	eventID := "evt-replay-1"
	req := &service.RecordMoveRequest{
		EventID: &eventID,
		ItemID:  item.ID,
		ToLocID: &store.ID,
		Qty:     decimal.NewFromInt(25),
		Reason:  repository.ReasonReceipt,
	}

	first, err := svc.RecordMove(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.RecordMove(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Move.ID, second.Move.ID)

	// No double-counting: the batch still holds exactly one receipt.
	batchRepo := repository.NewBatchRepository(suite.DB)
	total, err := batchRepo.TotalOnHand(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(25)))
}

func TestLedgerService_Validation(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-validation")
	store := createTestLocation(t, ctx, "Store D", repository.LocationKindStorage)
	svc := newLedgerService()

	t.Run("zero quantity", func(t *testing.T) {
		_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
			ItemID:  item.ID,
			ToLocID: &store.ID,
			Qty:     decimal.Zero,
			Reason:  repository.ReasonReceipt,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
			ItemID:  item.ID,
			ToLocID: &store.ID,
			Qty:     decimal.NewFromInt(-5),
			Reason:  repository.ReasonReceipt,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("no locations", func(t *testing.T) {
		_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
			ItemID: item.ID,
			Qty:    decimal.NewFromInt(5),
			Reason: repository.ReasonReceipt,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
			ItemID:  "3f1c8764-0000-0000-0000-000000000000",
			ToLocID: &store.ID,
			Qty:     decimal.NewFromInt(5),
			Reason:  repository.ReasonReceipt,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}

func TestLedgerService_OutboundShortfall(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-shortfall")
	store := createTestLocation(t, ctx, "Store E", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward E", repository.LocationKindWard)
	svc := newLedgerService()

	receive(t, ctx, svc, item.ID, store.ID, 10, "LOT-S", 30)

	_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:    item.ID,
		FromLocID: &store.ID,
		ToLocID:   &ward.ID,
		Qty:       decimal.NewFromInt(11),
		Reason:    repository.ReasonIssue,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// Nothing written: quantity intact, ledger holds only the receipt.
	batchRepo := repository.NewBatchRepository(suite.DB)
	total, err := batchRepo.TotalOnHand(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(10)))

	moveRepo := repository.NewMoveRepository(suite.DB)
	moves, err := moveRepo.ListByItem(ctx, item.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestLedgerService_OutboundByLotIdentity(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-by-lot")
	store := createTestLocation(t, ctx, "Store F", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward F", repository.LocationKindWard)
	svc := newLedgerService()

	receive(t, ctx, svc, item.ID, store.ID, 10, "LOT-A", 30)
	late := receive(t, ctx, svc, item.ID, store.ID, 10, "LOT-B", 300)

	lot := "LOT-B"
	result, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:     item.ID,
		LotNo:      &lot,
		ExpiryDate: testutil.DaysFromNow(300),
		FromLocID:  &store.ID,
		ToLocID:    &ward.ID,
		Qty:        decimal.NewFromInt(4),
		Reason:     repository.ReasonIssue,
	})
	require.NoError(t, err)
	assert.Equal(t, *late.BatchID, *result.Move.BatchID)

	batchRepo := repository.NewBatchRepository(suite.DB)
	batch, err := batchRepo.GetByID(ctx, *late.BatchID)
	require.NoError(t, err)
	assert.True(t, batch.QtyOnHand.Equal(decimal.NewFromInt(6)))
}

func TestLedgerService_OutboundUnknownLot(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-unknown-lot")
	store := createTestLocation(t, ctx, "Store G", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward G", repository.LocationKindWard)
	svc := newLedgerService()

	receive(t, ctx, svc, item.ID, store.ID, 10, "LOT-REAL", 30)

	lot := "LOT-GHOST"
	_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:    item.ID,
		LotNo:     &lot,
		FromLocID: &store.ID,
		ToLocID:   &ward.ID,
		Qty:       decimal.NewFromInt(1),
		Reason:    repository.ReasonIssue,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLedgerService_LedgerMatchesAggregates(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "ledger-consistency")
	store := createTestLocation(t, ctx, "Store H", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward H", repository.LocationKindWard)
	svc := newLedgerService()

	receive(t, ctx, svc, item.ID, store.ID, 100, "LOT-C1", 60)
	receive(t, ctx, svc, item.ID, store.ID, 50, "LOT-C2", 120)

	_, err := svc.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:    item.ID,
		FromLocID: &store.ID,
		ToLocID:   &ward.ID,
		Qty:       decimal.NewFromInt(30),
		Reason:    repository.ReasonIssue,
	})
	require.NoError(t, err)

	levels := service.NewLevelsService(
		repository.NewBatchRepository(suite.DB),
		repository.NewMoveRepository(suite.DB),
		repository.NewItemRepository(suite.DB),
		logger.New("test", "test"),
	)
	audit, err := levels.Audit(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.True(t, audit.BatchTotal.Equal(decimal.NewFromInt(120)))
	assert.True(t, audit.LedgerTotal.Equal(decimal.NewFromInt(120)))
}
