package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting"
)

var errInvalidParameter = errors.New("invalid parameter")

// ReportService is the engine surface the handlers need.
type ReportService interface {
	Report(ctx context.Context, req reporting.ReportRequest) (domain.Report, error)
	Count(ctx context.Context, req reporting.CountRequest) (domain.Counters, error)
}

// Handler serves the report endpoints.
type Handler struct {
	service       ReportService
	logger        *logrus.Logger
	maxWindowSpan time.Duration
}

func NewHandler(service ReportService, logger *logrus.Logger, maxWindowSpan time.Duration) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, logger: logger, maxWindowSpan: maxWindowSpan}
}

// Register mounts the report routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/{kind}", h.handleReport)
	r.Get("/reports/{kind}/counters", h.handleCounters)
}

type countersResponse struct {
	Kind   domain.EntityKind   `json:"kind"`
	Window domain.ChangeWindow `json:"window"`
	Parent *domain.ParentRef   `json:"parent,omitempty"`
	Counts domain.Counters     `json:"counts"`
	Net    int                 `json:"net"`
	Total  int                 `json:"total"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind := domain.EntityKind(chi.URLParam(r, "kind"))

	window, err := domain.ParseChangeWindow(query.Get("datetime_gt"), query.Get("datetime_lte"), h.maxWindowSpan)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	req := reporting.ReportRequest{
		Kind:   kind,
		Window: window,
		Cursor: query.Get("cursor"),
	}
	if raw := query.Get("root_id"); raw != "" {
		rootID, err := uuid.Parse(raw)
		if err != nil {
			h.reject(w, r, fmt.Errorf("%w: root_id: %v", errInvalidParameter, err))
			return
		}
		req.RootID = &rootID
	}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			h.reject(w, r, fmt.Errorf("%w: page_size must be a positive integer", errInvalidParameter))
			return
		}
		req.PageSize = size
	}

	report, err := h.service.Report(r.Context(), req)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleCounters(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind := domain.EntityKind(chi.URLParam(r, "kind"))

	window, err := domain.ParseChangeWindow(query.Get("datetime_gt"), query.Get("datetime_lte"), h.maxWindowSpan)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	req := reporting.CountRequest{Kind: kind, Window: window}

	parentRaw, parentKind := query.Get("parent_id"), query.Get("parent_kind")
	switch {
	case parentRaw == "" && parentKind == "":
	case parentRaw == "" || parentKind == "":
		h.reject(w, r, fmt.Errorf("%w: parent_id and parent_kind must be given together", errInvalidParameter))
		return
	default:
		parentID, err := uuid.Parse(parentRaw)
		if err != nil {
			h.reject(w, r, fmt.Errorf("%w: parent_id: %v", errInvalidParameter, err))
			return
		}
		req.Parent = &domain.ParentRef{Kind: domain.EntityKind(parentKind), ID: parentID}
	}

	counts, err := h.service.Count(r.Context(), req)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countersResponse{
		Kind:   kind,
		Window: window,
		Parent: req.Parent,
		Counts: counts,
		Net:    counts.Net(),
		Total:  counts.Total(),
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	entry := h.logger.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("report request failed")
	} else {
		entry.Warn("report request rejected")
	}
	writeError(w, err)
}
