package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/testutil"
)

func newMonitorService(expiryHorizonDays int) *service.MonitorService {
	lg := logger.New("test", "test")
	return service.NewMonitorService(
		repository.NewItemRepository(suite.DB),
		repository.NewBatchRepository(suite.DB),
		repository.NewMoveRepository(suite.DB),
		repository.NewThresholdRepository(suite.DB),
		repository.NewAlertRepository(suite.DB),
		nil,
		lg,
		expiryHorizonDays,
	)
}

func createThreshold(t *testing.T, ctx context.Context, itemID string, locationID *string, minQty int64) *repository.Threshold {
	t.Helper()
	repo := repository.NewThresholdRepository(suite.DB)
	th := &repository.Threshold{
		ItemID:     itemID,
		LocationID: locationID,
		MinQty:     decimal.NewFromInt(minQty),
	}
	require.NoError(t, repo.Create(ctx, th))
	return th
}

func activeAlerts(t *testing.T, ctx context.Context) []*repository.Alert {
	t.Helper()
	alerts, err := repository.NewAlertRepository(suite.DB).ListActive(ctx)
	require.NoError(t, err)
	return alerts
}

func TestMonitorService_LowStockAlertLifecycle(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "monitor-low")
	store := createTestLocation(t, ctx, "Store ML", repository.LocationKindStorage)
	createThreshold(t, ctx, item.ID, nil, 10)

	ledger := newLedgerService()
	receive(t, ctx, ledger, item.ID, store.ID, 5, "LOT-ML", 200)

	monitor := newMonitorService(90)

	// First scan raises the alert.
	require.NoError(t, monitor.ScanAll(ctx))
	alerts := activeAlerts(t, ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, repository.AlertTypeLowStock, alerts[0].AlertType)
	assert.Equal(t, item.ID, alerts[0].ItemID)

	// Re-running against unchanged stock does not stack duplicates.
	require.NoError(t, monitor.ScanAll(ctx))
	require.NoError(t, monitor.ScanAll(ctx))
	assert.Len(t, activeAlerts(t, ctx), 1)

	// Restocking above the minimum resolves the alert on the next scan.
	receive(t, ctx, ledger, item.ID, store.ID, 10, "LOT-ML", 200)
	require.NoError(t, monitor.ScanAll(ctx))
	assert.Empty(t, activeAlerts(t, ctx))
}

func TestMonitorService_LowStockSeverityEscalates(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "monitor-severity")
	store := createTestLocation(t, ctx, "Store MS", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward MS", repository.LocationKindWard)
	createThreshold(t, ctx, item.ID, nil, 10)

	ledger := newLedgerService()
	receive(t, ctx, ledger, item.ID, store.ID, 8, "LOT-MS", 200)

	monitor := newMonitorService(90)
	require.NoError(t, monitor.ScanAll(ctx))

	alerts := activeAlerts(t, ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, repository.SeverityWarning, alerts[0].Severity)
	firstID := alerts[0].ID

	// Dropping below half the minimum escalates in place, same alert row.
	_, err := ledger.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:    item.ID,
		FromLocID: &store.ID,
		ToLocID:   &ward.ID,
		Qty:       decimal.NewFromInt(5),
		Reason:    repository.ReasonIssue,
	})
	require.NoError(t, err)
	require.NoError(t, monitor.ScanAll(ctx))

	alerts = activeAlerts(t, ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, firstID, alerts[0].ID)
	assert.Equal(t, repository.SeverityCritical, alerts[0].Severity)
}

func TestMonitorService_LocationThresholdUsesLedger(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "monitor-loc")
	store := createTestLocation(t, ctx, "Store MLoc", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward MLoc", repository.LocationKindWard)
	createThreshold(t, ctx, item.ID, &ward.ID, 10)

	ledger := newLedgerService()
	receive(t, ctx, ledger, item.ID, store.ID, 100, "LOT-MLoc", 200)

	// Plenty in the store, but the ward holds only 4.
	_, err := ledger.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:    item.ID,
		FromLocID: &store.ID,
		ToLocID:   &ward.ID,
		Qty:       decimal.NewFromInt(4),
		Reason:    repository.ReasonTransfer,
	})
	require.NoError(t, err)

	monitor := newMonitorService(90)
	require.NoError(t, monitor.ScanAll(ctx))

	alerts := activeAlerts(t, ctx)
	require.Len(t, alerts, 1)
	require.NotNil(t, alerts[0].LocationID)
	assert.Equal(t, ward.ID, *alerts[0].LocationID)
}

func TestMonitorService_ExpiryAlertLifecycle(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "monitor-expiry")
	store := createTestLocation(t, ctx, "Store ME", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward ME", repository.LocationKindWard)

	ledger := newLedgerService()
	soon := receive(t, ctx, ledger, item.ID, store.ID, 6, "LOT-SOON", 20)
	receive(t, ctx, ledger, item.ID, store.ID, 6, "LOT-FAR", 400)

	monitor := newMonitorService(90)
	require.NoError(t, monitor.ScanAll(ctx))

	alerts := activeAlerts(t, ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, repository.AlertTypeExpiry, alerts[0].AlertType)
	require.NotNil(t, alerts[0].BatchID)
	assert.Equal(t, *soon.BatchID, *alerts[0].BatchID)

	// Idempotent re-scan.
	require.NoError(t, monitor.ScanAll(ctx))
	assert.Len(t, activeAlerts(t, ctx), 1)

	// Consuming the batch to zero clears the alert on the next scan.
	lot := "LOT-SOON"
	_, err := ledger.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:     item.ID,
		LotNo:      &lot,
		ExpiryDate: testutil.DaysFromNow(20),
		FromLocID:  &store.ID,
		ToLocID:    &ward.ID,
		Qty:        decimal.NewFromInt(6),
		Reason:     repository.ReasonIssue,
	})
	require.NoError(t, err)
	require.NoError(t, monitor.ScanAll(ctx))
	assert.Empty(t, activeAlerts(t, ctx))
}

func TestMonitorService_ManualResolveSticks(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "monitor-manual")
	store := createTestLocation(t, ctx, "Store MM", repository.LocationKindStorage)
	createThreshold(t, ctx, item.ID, nil, 10)

	ledger := newLedgerService()
	receive(t, ctx, ledger, item.ID, store.ID, 2, "LOT-MM", 200)

	monitor := newMonitorService(90)
	require.NoError(t, monitor.ScanAll(ctx))
	alerts := activeAlerts(t, ctx)
	require.Len(t, alerts, 1)

	require.NoError(t, monitor.ResolveAlert(ctx, alerts[0].ID, "pharmacist"))
	assert.Empty(t, activeAlerts(t, ctx))

	// Stock is still low, so the next scan opens a fresh alert rather than
	// reviving the resolved one.
	require.NoError(t, monitor.ScanAll(ctx))
	fresh := activeAlerts(t, ctx)
	require.Len(t, fresh, 1)
	assert.NotEqual(t, alerts[0].ID, fresh[0].ID)
}
