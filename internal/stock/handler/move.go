package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/errors"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// MoveHandler handles ledger endpoints
type MoveHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewMoveHandler creates a new move handler
func NewMoveHandler(ledger *service.LedgerService, log *logger.Logger) *MoveHandler {
	return &MoveHandler{
		ledger: ledger,
		logger: log,
	}
}

// Record records a stock move. Returns 201 for a new move and 200 when the
// event ID was already recorded and the original move is returned.
func (h *MoveHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req service.RecordMoveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.RecordMove(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if result.Replayed {
		httputil.JSON(w, http.StatusOK, result)
		return
	}
	httputil.Created(w, result)
}

// Get gets a ledger entry by ID
func (h *MoveHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	move, err := h.ledger.GetMove(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, move)
}

// List lists ledger entries for an item
func (h *MoveHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		httputil.Error(w, errors.BadRequest("item_id query parameter is required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	moves, err := h.ledger.ListMoves(r.Context(), itemID, limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, moves)
}
