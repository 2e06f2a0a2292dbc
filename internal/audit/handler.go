package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quartermaster-erp/quartermaster/internal/platform/httpx"
)

// Handler exposes read endpoints over the audit timeline. Write access goes
// through Recorder only; there is no mutation surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes. The guards carry the permission
// checks so reading and exporting can be gated differently.
func (h *Handler) MountRoutes(r chi.Router, readGuard, exportGuard func(http.Handler) http.Handler) {
	r.With(readGuard).Get("/", h.timeline)
	r.With(exportGuard).Get("/export", h.export)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "OK", result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "OK", map[string]any{"rows": rows})
}

func parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	filters := TimelineFilters{
		ResourceType: q.Get("resource_type"),
		Action:       q.Get("action"),
	}
	if v, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = v
	}
	if v, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = v
	}
	if v, err := strconv.ParseInt(q.Get("principal_id"), 10, 64); err == nil {
		filters.PrincipalID = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filters.PageSize = v
	}
	return filters
}
