package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// ThresholdHandler handles threshold endpoints
type ThresholdHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewThresholdHandler creates a new threshold handler
func NewThresholdHandler(catalog *service.CatalogService, log *logger.Logger) *ThresholdHandler {
	return &ThresholdHandler{
		catalog: catalog,
		logger:  log,
	}
}

type thresholdRequest struct {
	ItemID     string          `json:"item_id" validate:"required,uuid"`
	LocationID *string         `json:"location_id" validate:"omitempty,uuid"`
	MinQty     decimal.Decimal `json:"min_qty"`
}

// Create creates a new threshold rule
func (h *ThresholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	threshold := &repository.Threshold{
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		MinQty:     req.MinQty,
	}
	if err := h.catalog.CreateThreshold(r.Context(), threshold); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, threshold)
}

// Get gets a threshold rule by ID
func (h *ThresholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	threshold, err := h.catalog.GetThreshold(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, threshold)
}

// List lists threshold rules, optionally for one item
func (h *ThresholdHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")

	thresholds, err := h.catalog.ListThresholds(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, thresholds)
}

type thresholdUpdateRequest struct {
	MinQty decimal.Decimal `json:"min_qty"`
}

// Update changes the minimum quantity of a rule
func (h *ThresholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req thresholdUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	threshold, err := h.catalog.UpdateThreshold(r.Context(), id, req.MinQty)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, threshold)
}

// Delete removes a threshold rule
func (h *ThresholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeleteThreshold(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
