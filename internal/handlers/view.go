package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/services"
	"autosales-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

// views turns selections into template data. Page, SSE and API handlers share
// it.
type views struct {
	reports  *services.Reports
	renderer *charts.Renderer
}

func selectionFromQuery(r *http.Request) models.Selection {
	q := r.URL.Query()
	return models.NewSelection(q.Get("report_type"), q.Get("year"))
}

func (v views) yearSelect(sel models.Selection) templates.YearSelectView {
	options := services.YearOptions(string(sel.Type))
	selected := 0
	if slices.Contains(options, sel.Year) {
		selected = sel.Year
	}
	return templates.YearSelectView{Options: options, Selected: selected}
}

func (v views) reportView(ctx context.Context, sel models.Selection) (templates.ReportViewData, error) {
	report, err := v.reports.Build(ctx, sel)
	if err != nil {
		return templates.ReportViewData{}, err
	}
	if report.IsFallback() {
		return templates.ReportViewData{Message: report.Message}, nil
	}

	images, err := v.renderer.RenderAll(ctx, report.Charts, charts.FormatSVG)
	if err != nil {
		return templates.ReportViewData{}, fmt.Errorf("render charts: %w", err)
	}

	panels := make([]templates.Panel, len(report.Charts))
	for i, c := range report.Charts {
		panels[i] = templates.Panel{
			Index:  c.Index,
			Title:  c.Title,
			SVG:    string(images[i]),
			PNGURL: chartURL(sel, c.Index, charts.FormatPNG),
		}
	}
	return templates.ReportViewData{Panels: panels}, nil
}

func chartURL(sel models.Selection, index int, format charts.Format) string {
	q := url.Values{}
	q.Set("report_type", string(sel.Type))
	if sel.Year != 0 {
		q.Set("year", strconv.Itoa(sel.Year))
	}
	q.Set("format", string(format))
	return fmt.Sprintf("/api/charts/%d?%s", index, q.Encode())
}
