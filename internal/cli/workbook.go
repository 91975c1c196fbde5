package cli

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"autosales-dashboard/internal/models"
)

// maxSheetName is the Excel limit, counted in characters.
const maxSheetName = 31

// sheetName derives a unique, valid sheet name for a chart. Long titles are
// cut on a rune boundary.
func sheetName(c models.Chart) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, c.Title)

	prefix := fmt.Sprintf("%d ", c.Index)
	if runes := []rune(name); len(prefix)+len(runes) > maxSheetName {
		name = strings.TrimSpace(string(runes[:maxSheetName-len(prefix)]))
	}
	return prefix + name
}

// writeWorkbook saves one sheet per chart holding its aggregated points.
func writeWorkbook(path string, report models.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, c := range report.Charts {
		sheet := sheetName(c)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		headers := []any{c.XLabel, c.YLabel}
		if c.Kind == models.ChartGroupedBar {
			headers = []any{"Vehicle Type", c.XLabel, c.YLabel}
		}
		if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		for row, p := range c.Points {
			values := []any{p.Label, p.Value}
			if c.Kind == models.ChartGroupedBar {
				values = []any{p.Label, p.X, p.Value}
			}
			cell, err := excelize.CoordinatesToCellName(1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}

		end, err := excelize.ColumnNumberToName(len(headers))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", end, 20); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
