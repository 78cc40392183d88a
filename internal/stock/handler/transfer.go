package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// TransferHandler handles transfer endpoints
type TransferHandler struct {
	allocator *service.AllocatorService
	logger    *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(allocator *service.AllocatorService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		allocator: allocator,
		logger:    log,
	}
}

// Create fulfils a transfer request
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.allocator.CreateTransfer(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, transfer)
}

// Get gets a transfer with its lines
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.allocator.GetTransfer(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// List lists transfers
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transfers, err := h.allocator.ListTransfers(r.Context(), limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfers)
}
