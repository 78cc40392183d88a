package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	monitor *service.MonitorService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(monitor *service.MonitorService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		monitor: monitor,
		logger:  log,
	}
}

// List lists alerts. With active=true only unresolved alerts are returned.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		alerts, err := h.monitor.ListActiveAlerts(r.Context())
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, alerts)
		return
	}

	alertType := r.URL.Query().Get("type")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	alerts, err := h.monitor.ListAlerts(r.Context(), alertType, limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

type resolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"omitempty,max=100"`
}

// Resolve marks an alert resolved
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveAlertRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	if err := h.monitor.ResolveAlert(r.Context(), id, req.ResolvedBy); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Scan triggers an immediate scan cycle
func (h *AlertHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.ScanAll(r.Context()); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
