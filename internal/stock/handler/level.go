package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// LevelHandler handles on-hand query endpoints
type LevelHandler struct {
	levels *service.LevelsService
	logger *logger.Logger
}

// NewLevelHandler creates a new level handler
func NewLevelHandler(levels *service.LevelsService, log *logger.Logger) *LevelHandler {
	return &LevelHandler{
		levels: levels,
		logger: log,
	}
}

// List returns the aggregated position of every active item, or of one
// item when item_id is given. With location_id the position is recomputed
// from the ledger for that location; with lot_no it is narrowed to the
// batches carrying that lot.
func (h *LevelHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	locationID := r.URL.Query().Get("location_id")
	lotNo := r.URL.Query().Get("lot_no")

	if itemID == "" {
		levels, err := h.levels.ListLevels(r.Context())
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, levels)
		return
	}

	if lotNo != "" {
		level, err := h.levels.OnHandForLot(r.Context(), itemID, lotNo)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, level)
		return
	}

	if locationID != "" {
		level, err := h.levels.OnHandAtLocation(r.Context(), itemID, locationID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, level)
		return
	}

	level, err := h.levels.OnHand(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, level)
}

// Audit recomputes an item's position from the ledger and compares it to
// the batch aggregates
func (h *LevelHandler) Audit(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	audit, err := h.levels.Audit(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, audit)
}

// ListBatches lists the batches of an item in expiry order
func (h *LevelHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	batches, err := h.levels.ListBatches(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Expiring reports non-empty batches expiring within the horizon
func (h *LevelHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	withinDays, _ := strconv.Atoi(r.URL.Query().Get("days"))

	batches, err := h.levels.ExpiringBatches(r.Context(), withinDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
