package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// LocationHandler handles location endpoints
type LocationHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(catalog *service.CatalogService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		catalog: catalog,
		logger:  log,
	}
}

type locationRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Kind string `json:"kind" validate:"required,oneof=storage ward pharmacy disposal"`
}

// Create creates a new location
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	loc := &repository.Location{
		Name:     req.Name,
		Kind:     req.Kind,
		IsActive: true,
	}
	if err := h.catalog.CreateLocation(r.Context(), loc); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, loc)
}

// Get gets a location by ID
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loc, err := h.catalog.GetLocation(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, loc)
}

// List lists locations
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.catalog.ListLocations(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, locations)
}

// Update updates a location
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req locationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	loc := &repository.Location{
		ID:   id,
		Name: req.Name,
		Kind: req.Kind,
	}
	if err := h.catalog.UpdateLocation(r.Context(), loc); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, loc)
}

// Delete deactivates a location
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeactivateLocation(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
