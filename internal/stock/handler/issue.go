package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// IssueHandler handles issue endpoints
type IssueHandler struct {
	allocator *service.AllocatorService
	logger    *logger.Logger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(allocator *service.AllocatorService, log *logger.Logger) *IssueHandler {
	return &IssueHandler{
		allocator: allocator,
		logger:    log,
	}
}

// Create fulfils an issue request. A shortfall on any line returns 409 and
// leaves no trace of the request.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateIssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	issue, err := h.allocator.CreateIssue(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, issue)
}

// Get gets an issue with its lines and allocations
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	issue, err := h.allocator.GetIssue(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, issue)
}

// List lists issues
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	issues, err := h.allocator.ListIssues(r.Context(), limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, issues)
}
