package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/errors"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/services"
)

const version = "1.0.0"

type APIHandlers struct {
	views
	logger *slog.Logger
}

func NewAPIHandlers(reports *services.Reports, renderer *charts.Renderer, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		views:  views{reports: reports, renderer: renderer},
		logger: logger,
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
		"records":   h.reports.Dataset().Len(),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.reports.Dataset().Stats())
}

// HandleOptions returns the year options for a report type.
func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	reportType := r.URL.Query().Get("report_type")

	data := map[string]any{
		"report_type": reportType,
		"years":       services.YearOptions(reportType),
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

// HandleReport returns the chart descriptors for a selection as JSON.
func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	requestID := observability.GetRequestID(ctx)

	report, err := h.reports.Build(ctx, selectionFromQuery(r))
	if err != nil {
		errors.WriteError(w, h.logger, errors.Classify(err, "Failed to build report"), requestID)
		return
	}

	errors.WriteSuccessWithHeaders(w, report, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

// HandleChart renders one chart of a report as an image. Index is 1-based.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	requestID := observability.GetRequestID(ctx)

	rawIndex := chi.URLParam(r, "index")
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound("Chart not found").WithDetails("invalid chart index %q", rawIndex), requestID)
		return
	}

	format, err := charts.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.Validation("Unsupported chart format").WithDetails("%v", err), requestID)
		return
	}

	sel := selectionFromQuery(r)
	report, err := h.reports.Build(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.Classify(err, "Failed to build report"), requestID)
		return
	}
	if report.IsFallback() {
		errors.WriteError(w, h.logger, errors.NotFound("No report for selection").WithDetails("%s", report.Message), requestID)
		return
	}
	if index < 1 || index > len(report.Charts) {
		errors.WriteError(w, h.logger, errors.NotFound("Chart not found").WithDetails("chart index must be between 1 and %d", len(report.Charts)), requestID)
		return
	}

	data, err := h.renderer.Render(report.Charts[index-1], format)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Failed to render chart"), requestID)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", cacheMaxAge)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write chart", "error", err, "request_id", requestID)
	}
}
