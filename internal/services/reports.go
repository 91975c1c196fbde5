package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/observability"
)

// YearOptions is the year dropdown's option list for a raw report type value:
// every year for the yearly report, nothing otherwise.
func YearOptions(reportType string) []int {
	if models.ParseReportType(reportType) == models.ReportYearly {
		return models.Years()
	}
	return []int{}
}

// Reports turns a selection into the four charts of a report.
type Reports struct {
	dataset *Dataset
	logger  *slog.Logger
}

func NewReports(dataset *Dataset, logger *slog.Logger) *Reports {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reports{
		dataset: dataset,
		logger:  logger,
	}
}

func (r *Reports) Dataset() *Dataset {
	return r.dataset
}

// chartSpec is one group-by-aggregate-and-plot step.
type chartSpec struct {
	kind   models.ChartKind
	title  string
	xLabel string
	yLabel string
	data   dataframe.DataFrame
	subset models.Subset
	key    string
	agg    dataframe.AggregationType
	cols   []string
}

// Build produces the report for sel. Selections that resolve to neither
// report come back as the fallback report, not an error.
func (r *Reports) Build(ctx context.Context, sel models.Selection) (models.Report, error) {
	ctx, span := observability.StartSpan(ctx, "report.build")
	defer span.Finish(r.logger)
	span.SetTag("report_type", string(sel.Type))
	span.SetTag("year", strconv.Itoa(sel.Year))

	var specs []chartSpec
	switch {
	case sel.Type == models.ReportRecession:
		specs = r.recessionSpecs()
	case sel.Type == models.ReportYearly && sel.HasYear():
		specs = r.yearlySpecs(sel.Year)
	default:
		span.SetTag("fallback", "true")
		return models.FallbackReport(sel), nil
	}

	charts, err := r.run(ctx, specs)
	if err != nil {
		span.SetError(err)
		return models.Report{}, fmt.Errorf("build %s report: %w", sel.Type, err)
	}

	report := models.Report{Type: sel.Type, Charts: charts}
	if sel.Type == models.ReportYearly {
		report.Year = sel.Year
	}

	r.logger.DebugContext(ctx, "report built",
		"report_type", sel.Type,
		"year", report.Year,
		"charts", len(charts),
	)
	return report, nil
}

func (r *Reports) recessionSpecs() []chartSpec {
	recession := r.dataset.where(models.ColRecession, 1)
	subset := models.Subset{Filter: "Recession == 1", Rows: recession.Nrow()}

	return []chartSpec{
		{
			kind:   models.ChartLine,
			title:  "Average Automobile Sales fluctuation over Recession Period",
			xLabel: "Year",
			yLabel: "Average Automobile Sales",
			data:   recession,
			subset: subset,
			key:    models.ColYear,
			agg:    dataframe.Aggregation_MEAN,
			cols:   []string{models.ColSales},
		},
		{
			kind:   models.ChartBar,
			title:  "Average Number of Automobile Sales by Vehicle Type",
			xLabel: "Vehicle Type",
			yLabel: "Average Automobile Sales",
			data:   recession,
			subset: subset,
			key:    models.ColVehicleType,
			agg:    dataframe.Aggregation_MEAN,
			cols:   []string{models.ColSales},
		},
		{
			kind:   models.ChartPie,
			title:  "Total Advertising Expenditure Share by Vehicle Type during Recessions",
			xLabel: "Vehicle Type",
			yLabel: "Advertising Expenditure",
			data:   recession,
			subset: subset,
			key:    models.ColVehicleType,
			agg:    dataframe.Aggregation_SUM,
			cols:   []string{models.ColAdvertising},
		},
		{
			kind:   models.ChartGroupedBar,
			title:  "Effect of Unemployment Rate on Vehicle Type and Sales",
			xLabel: "Unemployment Rate",
			yLabel: "Automobile Sales",
			data:   recession,
			subset: subset,
			key:    models.ColVehicleType,
			agg:    dataframe.Aggregation_SUM,
			cols:   []string{models.ColUnemployment, models.ColSales},
		},
	}
}

// yearlySpecs builds the yearly report. The first two charts deliberately
// cover the whole dataset; only the last two are restricted to year.
func (r *Reports) yearlySpecs(year int) []chartSpec {
	all := r.dataset.frame
	allSubset := models.Subset{Rows: all.Nrow()}

	inYear := r.dataset.where(models.ColYear, year)
	yearSubset := models.Subset{Filter: fmt.Sprintf("Year == %d", year), Rows: inYear.Nrow()}

	return []chartSpec{
		{
			kind:   models.ChartLine,
			title:  "Yearly Average Automobile Sales",
			xLabel: "Year",
			yLabel: "Average Automobile Sales",
			data:   all,
			subset: allSubset,
			key:    models.ColYear,
			agg:    dataframe.Aggregation_MEAN,
			cols:   []string{models.ColSales},
		},
		{
			kind:   models.ChartLine,
			title:  "Total Monthly Automobile Sales",
			xLabel: "Month",
			yLabel: "Total Automobile Sales",
			data:   all,
			subset: allSubset,
			key:    models.ColMonth,
			agg:    dataframe.Aggregation_SUM,
			cols:   []string{models.ColSales},
		},
		{
			kind:   models.ChartBar,
			title:  fmt.Sprintf("Average Monthly Automobile Sales in %d", year),
			xLabel: "Month",
			yLabel: "Average Automobile Sales",
			data:   inYear,
			subset: yearSubset,
			key:    models.ColMonth,
			agg:    dataframe.Aggregation_MEAN,
			cols:   []string{models.ColSales},
		},
		{
			kind:   models.ChartPie,
			title:  fmt.Sprintf("Total Advertising Expenditure by Vehicle Type in %d", year),
			xLabel: "Vehicle Type",
			yLabel: "Advertising Expenditure",
			data:   inYear,
			subset: yearSubset,
			key:    models.ColVehicleType,
			agg:    dataframe.Aggregation_SUM,
			cols:   []string{models.ColAdvertising},
		},
	}
}

func (r *Reports) run(ctx context.Context, specs []chartSpec) ([]models.Chart, error) {
	charts := make([]models.Chart, 0, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		groups, err := aggregate(spec.data, spec.key, spec.agg, spec.cols...)
		if err != nil {
			return nil, fmt.Errorf("chart %d: %w", i+1, err)
		}

		charts = append(charts, models.Chart{
			Index:  i + 1,
			Kind:   spec.kind,
			Title:  spec.title,
			XLabel: spec.xLabel,
			YLabel: spec.yLabel,
			Points: toPoints(groups),
			Subset: spec.subset,
		})
	}
	return charts, nil
}

// toPoints maps single-column groups to (label, value) and two-column groups
// to (label, x, value).
func toPoints(groups []group) []models.Point {
	points := make([]models.Point, len(groups))
	for i, g := range groups {
		p := models.Point{Label: g.Key}
		switch len(g.Values) {
		case 1:
			p.Value = g.Values[0]
		case 2:
			p.X = g.Values[0]
			p.Value = g.Values[1]
		}
		points[i] = p
	}
	return points
}
