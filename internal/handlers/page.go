package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/errors"
	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/services"
	"autosales-dashboard/internal/ui/templates"
)

type PageHandlers struct {
	views
	logger *slog.Logger
}

func NewPageHandlers(reports *services.Reports, renderer *charts.Renderer, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		views:  views{reports: reports, renderer: renderer},
		logger: logger,
	}
}

// initialSelection is the selection the page opens with: the query string when
// it names a report type, Yearly Statistics for DefaultYear otherwise.
func initialSelection(r *http.Request) models.Selection {
	if r.URL.Query().Has("report_type") {
		return selectionFromQuery(r)
	}
	return models.NewSelection(string(models.ReportYearly), strconv.Itoa(templates.DefaultYear))
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	requestID := observability.GetRequestID(ctx)
	sel := initialSelection(r)

	report, err := h.reportView(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.Classify(err, "Failed to render dashboard"), requestID)
		return
	}

	view := templates.DashboardView{
		ReportTypes:  models.ReportTypes,
		SelectedType: sel.Type,
		YearSelect:   h.yearSelect(sel),
		Report:       report,
	}

	var buf bytes.Buffer
	if err := templates.Dashboard(view).Render(ctx, &buf); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Failed to render dashboard"), requestID)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write dashboard", "error", err, "request_id", requestID)
	}
}
