package handler_test

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospilog/hospilog-backend/internal/stock/handler"
	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
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

func newTestRouter() chi.Router {
	lg := logger.New("test", "test")

	itemRepo := repository.NewItemRepository(suite.DB)
	locationRepo := repository.NewLocationRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	moveRepo := repository.NewMoveRepository(suite.DB)
	issueRepo := repository.NewIssueRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB)

	ledger := service.NewLedgerService(suite.DB, moveRepo, batchRepo, itemRepo, locationRepo, nil, lg)
	allocator := service.NewAllocatorService(suite.DB, batchRepo, moveRepo, issueRepo, transferRepo, itemRepo, locationRepo, nil, lg)

	moveHandler := handler.NewMoveHandler(ledger, lg)
	issueHandler := handler.NewIssueHandler(allocator, lg)

	r := chi.NewRouter()
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Post("/moves", moveHandler.Record)
		r.Post("/issues", issueHandler.Create)
		r.Get("/issues/{id}", issueHandler.Get)
	})
	return r
}

func seedStock(t *testing.T, ctx context.Context, itemID, locID string, qty int64) {
	t.Helper()
	lg := logger.New("test", "test")
	ledger := service.NewLedgerService(
		suite.DB,
		repository.NewMoveRepository(suite.DB),
		repository.NewBatchRepository(suite.DB),
		repository.NewItemRepository(suite.DB),
		repository.NewLocationRepository(suite.DB),
		nil, lg,
	)
	lot := "LOT-SEED"
	_, err := ledger.RecordMove(ctx, &service.RecordMoveRequest{
		ItemID:     itemID,
		LotNo:      &lot,
		ExpiryDate: testutil.DaysFromNow(120),
		ToLocID:    &locID,
		Qty:        decimal.NewFromInt(qty),
		Reason:     repository.ReasonReceipt,
	})
	require.NoError(t, err)
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
	loc := &repository.Location{Name: name, Kind: fx.Kind, IsActive: true}
	require.NoError(t, repo.Create(ctx, loc))
	return loc
}

func TestIssueEndpoint_Created(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "http-issue-ok")
	store := createTestLocation(t, ctx, "Store H1", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward H1", repository.LocationKindWard)
	seedStock(t, ctx, item.ID, store.ID, 50)

	router := newTestRouter()
	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/stock/issues", map[string]interface{}{
		"from_loc_id": store.ID,
		"to_loc_id":   ward.ID,
		"lines": []map[string]interface{}{
			{"item_id": item.ID, "qty": "15"},
		},
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)

	var body struct {
		Success bool             `json:"success"`
		Data    repository.Issue `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.True(t, body.Success)
	require.Len(t, body.Data.Lines, 1)
	assert.True(t, body.Data.Lines[0].FulfilledQty.Equal(decimal.NewFromInt(15)))
}

func TestIssueEndpoint_InsufficientStockBody(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "http-issue-409")
	store := createTestLocation(t, ctx, "Store H2", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward H2", repository.LocationKindWard)
	seedStock(t, ctx, item.ID, store.ID, 5)

	router := newTestRouter()
	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/stock/issues", map[string]interface{}{
		"from_loc_id": store.ID,
		"to_loc_id":   ward.ID,
		"lines": []map[string]interface{}{
			{"item_id": item.ID, "qty": "6"},
		},
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	assert.JSONEq(t, `{"error":"Insufficient stock (FEFO)"}`, rr.Body.String())
}

func TestIssueEndpoint_ValidationError(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	store := createTestLocation(t, ctx, "Store H3", repository.LocationKindStorage)
	ward := createTestLocation(t, ctx, "Ward H3", repository.LocationKindWard)

	router := newTestRouter()
	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/stock/issues", map[string]interface{}{
		"from_loc_id": store.ID,
		"to_loc_id":   ward.ID,
		"lines":       []map[string]interface{}{},
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestMoveEndpoint_ReplayReturnsOK(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	item := createTestItem(t, ctx, "http-move-replay")
	store := createTestLocation(t, ctx, "Store H4", repository.LocationKindStorage)

	router := newTestRouter()
	payload := map[string]interface{}{
		"event_id":  "evt-http-1",
		"item_id":   item.ID,
		"to_loc_id": store.ID,
		"qty":       "10",
		"reason":    "RECEIPT",
	}

	first := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/stock/moves", payload))
	testutil.AssertStatus(t, first, http.StatusCreated)

	second := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/stock/moves", payload))
	testutil.AssertStatus(t, second, http.StatusOK)
	testutil.AssertBodyContains(t, second, `"replayed":true`)
}

func TestIssueEndpoint_GetNotFound(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	router := newTestRouter()
	req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/stock/issues/8a1f3d60-0000-0000-0000-000000000000", nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertBodyContains(t, rr, "issue not found")
}
