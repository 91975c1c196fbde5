// Package templates renders the dashboard page and the fragments that SSE
// handlers patch into it. The components live in .templ files; the
// *_templ.go files are generated by running `templ generate` from the module
// root.
package templates

import (
	"encoding/json"
	"strconv"

	"autosales-dashboard/internal/models"
)

const (
	Title       = "Automobile Sales Statistics Dashboard"
	Placeholder = "Select a report type"

	// DatastarVersion is the client bundle matching datastar-go v1.0.x. The
	// 1.0 attribute syntax puts the key after a colon (data-on:change).
	DatastarVersion = "1.0.0"
	DatastarURL     = "https://cdn.jsdelivr.net/gh/starfederation/datastar@" + DatastarVersion + "/bundles/datastar.js"

	DefaultYear = 2010
)

// Element ids the SSE handlers patch.
const (
	YearSelectID = "select-year"
	OutputID     = "output-container"
)

// Panel is one rendered chart in the output grid.
type Panel struct {
	Index  int
	Title  string
	SVG    string // renderer output, written unescaped
	PNGURL string
}

type YearSelectView struct {
	Options  []int
	Selected int
}

type ReportViewData struct {
	Panels  []Panel
	Message string
}

type DashboardView struct {
	ReportTypes  []models.ReportType
	SelectedType models.ReportType
	YearSelect   YearSelectView
	Report       ReportViewData
}

// initialSignals is the datastar signal set the page starts with. The year
// travels as a string, matching what the select binds.
func initialSignals(v DashboardView) (string, error) {
	year := ""
	if v.YearSelect.Selected != 0 {
		year = strconv.Itoa(v.YearSelect.Selected)
	}
	b, err := json.Marshal(map[string]string{
		"reportType": string(v.SelectedType),
		"year":       year,
	})
	return string(b), err
}
