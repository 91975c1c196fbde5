package models

import (
	"strconv"
	"strings"
)

type ReportType string

const (
	ReportNone      ReportType = ""
	ReportYearly    ReportType = "Yearly Statistics"
	ReportRecession ReportType = "Recession Period Statistics"
)

const (
	FirstYear = 1980
	LastYear  = 2023

	FallbackMessage = "Select a report type and year to view statistics."
)

// ReportTypes are the dropdown choices, in display order.
var ReportTypes = []ReportType{ReportYearly, ReportRecession}

// ParseReportType maps a raw dropdown value to a report type. Anything that is
// not an exact option is treated as unset.
func ParseReportType(s string) ReportType {
	switch ReportType(s) {
	case ReportYearly:
		return ReportYearly
	case ReportRecession:
		return ReportRecession
	default:
		return ReportNone
	}
}

// Years returns every selectable year, FirstYear through LastYear.
func Years() []int {
	years := make([]int, 0, LastYear-FirstYear+1)
	for y := FirstYear; y <= LastYear; y++ {
		years = append(years, y)
	}
	return years
}

type Selection struct {
	Type ReportType `json:"report_type"`
	Year int        `json:"year,omitempty"`
}

// NewSelection resolves raw UI values. A year that is blank, not an integer or
// outside [FirstYear, LastYear] resolves to 0.
func NewSelection(reportType, year string) Selection {
	sel := Selection{Type: ParseReportType(reportType)}

	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err == nil && y >= FirstYear && y <= LastYear {
		sel.Year = y
	}
	return sel
}

func (s Selection) HasYear() bool {
	return s.Year != 0
}

type ChartKind string

const (
	ChartLine       ChartKind = "line"
	ChartBar        ChartKind = "bar"
	ChartPie        ChartKind = "pie"
	ChartGroupedBar ChartKind = "grouped_bar"
)

type Point struct {
	Label string  `json:"label"`
	X     float64 `json:"x,omitempty"`
	Value float64 `json:"value"`
}

// Subset describes the rows an aggregation was computed from.
type Subset struct {
	Filter string `json:"filter,omitempty"`
	Rows   int    `json:"rows"`
}

type Chart struct {
	Index  int       `json:"index"`
	Kind   ChartKind `json:"kind"`
	Title  string    `json:"title"`
	XLabel string    `json:"x_label"`
	YLabel string    `json:"y_label"`
	Points []Point   `json:"points"`
	Subset Subset    `json:"subset"`
}

// Total sums the values of every point.
func (c Chart) Total() float64 {
	var total float64
	for _, p := range c.Points {
		total += p.Value
	}
	return total
}

type Report struct {
	Type    ReportType `json:"report_type"`
	Year    int        `json:"year,omitempty"`
	Charts  []Chart    `json:"charts"`
	Message string     `json:"message,omitempty"`
}

func FallbackReport(sel Selection) Report {
	return Report{
		Type:    sel.Type,
		Year:    sel.Year,
		Charts:  []Chart{},
		Message: FallbackMessage,
	}
}

func (r Report) IsFallback() bool {
	return r.Message != ""
}
