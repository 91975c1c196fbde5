package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/errors"
	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/services"
	"autosales-dashboard/internal/ui/templates"
)

// yearSignal accepts the year as either a JSON string or a number. The select
// binds a string; scripted clients may send a number.
type yearSignal string

func (y *yearSignal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*y = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*y = yearSignal(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("year must be a string or a number: %w", err)
	}
	*y = yearSignal(n.String())
	return nil
}

type dashboardSignals struct {
	ReportType string     `json:"reportType"`
	Year       yearSignal `json:"year"`
}

func (s dashboardSignals) selection() models.Selection {
	return models.NewSelection(s.ReportType, string(s.Year))
}

type SSEHandlers struct {
	views
	logger *slog.Logger
}

func NewSSEHandlers(reports *services.Reports, renderer *charts.Renderer, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		views:  views{reports: reports, renderer: renderer},
		logger: logger,
	}
}

func (h *SSEHandlers) readSelection(w http.ResponseWriter, r *http.Request) (models.Selection, bool) {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		requestID := observability.GetRequestID(r.Context())
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Malformed signals"), requestID)
		return models.Selection{}, false
	}
	return signals.selection(), true
}

func renderFragment(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (h *SSEHandlers) yearSelectHTML(ctx context.Context, sel models.Selection) (string, error) {
	view := h.yearSelect(sel)
	return renderFragment(ctx, templates.YearSelect(view.Options, view.Selected))
}

func (h *SSEHandlers) reportHTML(ctx context.Context, sel models.Selection) (string, error) {
	view, err := h.reportView(ctx, sel)
	if err != nil {
		return "", err
	}
	return renderFragment(ctx, templates.ReportView(view.Panels, view.Message))
}

// stream opens the SSE response and patches each fragment in order. Fragments
// are rendered before the stream opens so failures still get a JSON error.
func (h *SSEHandlers) stream(w http.ResponseWriter, r *http.Request, fragments ...string) {
	sse := datastar.NewSSE(w, r)

	for _, html := range fragments {
		if err := sse.PatchElements(html); err != nil {
			h.logger.Warn("patch elements",
				"error", err,
				"request_id", observability.GetRequestID(r.Context()),
			)
			return
		}
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleOptions patches the year dropdown for the selected report type.
func (h *SSEHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.readSelection(w, r)
	if !ok {
		return
	}

	html, err := h.yearSelectHTML(r.Context(), sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Failed to render year options"), observability.GetRequestID(r.Context()))
		return
	}

	h.stream(w, r, html)
}

// HandleReport patches the chart grid for the current selection.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.readSelection(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	html, err := h.reportHTML(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.Classify(err, "Failed to render report"), observability.GetRequestID(ctx))
		return
	}

	h.stream(w, r, html)
}

// HandleRefresh patches both the year dropdown and the chart grid. The report
// dropdown uses it since changing the type changes both.
func (h *SSEHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.readSelection(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	requestID := observability.GetRequestID(ctx)

	yearHTML, err := h.yearSelectHTML(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Failed to render year options"), requestID)
		return
	}
	reportHTML, err := h.reportHTML(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.Classify(err, "Failed to render report"), requestID)
		return
	}

	h.stream(w, r, yearHTML, reportHTML)
}
