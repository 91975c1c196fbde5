package services

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"autosales-dashboard/internal/models"
)

// ErrInvalidDataset marks CSV input that cannot back the dashboard.
var ErrInvalidDataset = errors.New("invalid dataset")

var columnTypes = map[string]series.Type{
	models.ColYear:         series.Int,
	models.ColMonth:        series.String,
	models.ColRecession:    series.Int,
	models.ColSales:        series.Float,
	models.ColVehicleType:  series.String,
	models.ColAdvertising:  series.Float,
	models.ColUnemployment: series.Float,
}

var numericColumns = []string{
	models.ColYear,
	models.ColRecession,
	models.ColSales,
	models.ColAdvertising,
	models.ColUnemployment,
}

// Dataset is the sales table. It is never mutated after construction, so it
// is safe for concurrent readers.
type Dataset struct {
	frame    dataframe.DataFrame
	source   string
	loadedAt time.Time
}

// ParseCSV reads the sales CSV, keeping only the dashboard columns.
func ParseCSV(r io.Reader, source string) (*Dataset, error) {
	raw := dataframe.ReadCSV(r, dataframe.WithTypes(columnTypes))
	if raw.Err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", ErrInvalidDataset, raw.Err)
	}

	if missing := missingColumns(raw.Names()); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns: %s", ErrInvalidDataset, strings.Join(missing, ", "))
	}

	frame := raw.Select(models.Columns)
	if frame.Err != nil {
		return nil, fmt.Errorf("%w: select columns: %v", ErrInvalidDataset, frame.Err)
	}

	if frame.Nrow() == 0 {
		return nil, fmt.Errorf("%w: no records found", ErrInvalidDataset)
	}

	for _, col := range numericColumns {
		if frame.Col(col).HasNaN() {
			return nil, fmt.Errorf("%w: column %s contains non-numeric values", ErrInvalidDataset, col)
		}
	}

	return &Dataset{
		frame:    frame,
		source:   source,
		loadedAt: time.Now(),
	}, nil
}

// NewDataset builds a dataset from typed records.
func NewDataset(records []models.SalesRecord, source string) *Dataset {
	n := len(records)
	years := make([]int, n)
	months := make([]string, n)
	recession := make([]int, n)
	sales := make([]float64, n)
	vehicleTypes := make([]string, n)
	advertising := make([]float64, n)
	unemployment := make([]float64, n)

	for i, rec := range records {
		years[i] = rec.Year
		months[i] = rec.Month
		if rec.Recession {
			recession[i] = 1
		}
		sales[i] = rec.AutomobileSales
		vehicleTypes[i] = rec.VehicleType
		advertising[i] = rec.AdvertisingExpenditure
		unemployment[i] = rec.UnemploymentRate
	}

	return &Dataset{
		frame: dataframe.New(
			series.New(years, series.Int, models.ColYear),
			series.New(months, series.String, models.ColMonth),
			series.New(recession, series.Int, models.ColRecession),
			series.New(sales, series.Float, models.ColSales),
			series.New(vehicleTypes, series.String, models.ColVehicleType),
			series.New(advertising, series.Float, models.ColAdvertising),
			series.New(unemployment, series.Float, models.ColUnemployment),
		),
		source:   source,
		loadedAt: time.Now(),
	}
}

func missingColumns(names []string) []string {
	var missing []string
	for _, col := range models.Columns {
		if !slices.Contains(names, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func (d *Dataset) Len() int {
	return d.frame.Nrow()
}

func (d *Dataset) Source() string {
	return d.source
}

func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Frame returns a copy of the underlying frame.
func (d *Dataset) Frame() dataframe.DataFrame {
	return d.frame.Copy()
}

// where selects the rows whose column equals value.
func (d *Dataset) where(col string, value any) dataframe.DataFrame {
	return d.frame.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.Eq,
		Comparando: value,
	})
}

func (d *Dataset) Records() []models.SalesRecord {
	years, _ := d.frame.Col(models.ColYear).Int()
	recession, _ := d.frame.Col(models.ColRecession).Int()
	months := d.frame.Col(models.ColMonth).Records()
	vehicleTypes := d.frame.Col(models.ColVehicleType).Records()
	sales := d.frame.Col(models.ColSales).Float()
	advertising := d.frame.Col(models.ColAdvertising).Float()
	unemployment := d.frame.Col(models.ColUnemployment).Float()

	records := make([]models.SalesRecord, d.Len())
	for i := range records {
		records[i] = models.SalesRecord{
			Year:                   years[i],
			Month:                  months[i],
			Recession:              recession[i] == 1,
			AutomobileSales:        sales[i],
			VehicleType:            vehicleTypes[i],
			AdvertisingExpenditure: advertising[i],
			UnemploymentRate:       unemployment[i],
		}
	}
	return records
}

// Years returns the distinct years present, ascending.
func (d *Dataset) Years() []int {
	years, _ := d.frame.Col(models.ColYear).Int()
	slices.Sort(years)
	return slices.Compact(years)
}

// VehicleTypes returns the distinct vehicle types present, sorted.
func (d *Dataset) VehicleTypes() []string {
	types := d.frame.Col(models.ColVehicleType).Records()
	slices.Sort(types)
	return slices.Compact(types)
}

func (d *Dataset) Stats() map[string]any {
	stats := map[string]any{
		"record_count":   d.Len(),
		"recession_rows": d.where(models.ColRecession, 1).Nrow(),
		"vehicle_types":  d.VehicleTypes(),
		"source":         d.source,
		"loaded_at":      d.loadedAt,
	}
	if years := d.Years(); len(years) > 0 {
		stats["first_year"] = years[0]
		stats["last_year"] = years[len(years)-1]
	}
	return stats
}
