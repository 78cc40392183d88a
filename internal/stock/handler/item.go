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

// ItemHandler handles item endpoints
type ItemHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(catalog *service.CatalogService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		catalog: catalog,
		logger:  log,
	}
}

type itemRequest struct {
	SKU      string          `json:"sku" validate:"required,max=100"`
	Name     string          `json:"name" validate:"required,max=255"`
	Unit     string          `json:"unit" validate:"required,max=50"`
	MinStock decimal.Decimal `json:"min_stock"`
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := &repository.Item{
		SKU:      req.SKU,
		Name:     req.Name,
		Unit:     req.Unit,
		MinStock: req.MinStock,
		IsActive: true,
	}
	if err := h.catalog.CreateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// List lists items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Update updates an item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := &repository.Item{
		ID:       id,
		SKU:      req.SKU,
		Name:     req.Name,
		Unit:     req.Unit,
		MinStock: req.MinStock,
	}
	if err := h.catalog.UpdateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Delete deactivates an item
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeactivateItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
