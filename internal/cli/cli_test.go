package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"autosales-dashboard/internal/models"
)

const salesCSV = `Year,Month,Recession,Automobile_Sales,Advertising_Expenditure,Vehicle_Type,unemployment_rate
1980,Jan,1,100,1000,Superminicar,5.0
1980,Feb,1,200,2000,Sports,6.0
1981,Jan,0,300,1500,Superminicar,4.0
1981,Mar,0,400,2500,Sports,4.5
1982,Feb,1,600,500,Superminicar,7.0
`

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(salesCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CACHE_DIR", "")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestResolveReportType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"yearly", string(models.ReportYearly)},
		{"Recession", string(models.ReportRecession)},
		{" recession ", string(models.ReportRecession)},
		{"Yearly Statistics", "Yearly Statistics"},
		{"monthly", "monthly"},
	}

	for _, tt := range tests {
		if got := resolveReportType(tt.input); got != tt.want {
			t.Errorf("resolveReportType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	csv := writeCSV(t)
	outDir := filepath.Join(t.TempDir(), "charts")
	workbook := filepath.Join(t.TempDir(), "sales.xlsx")

	out, err := run(t, "render", "--csv", csv, "--type", "recession", "--out", outDir, "--xlsx", workbook)
	if err != nil {
		t.Fatalf("render error = %v", err)
	}

	for i := 1; i <= 4; i++ {
		data, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("chart-%d.svg", i)))
		if err != nil {
			t.Fatalf("chart %d: %v", i, err)
		}
		if !bytes.HasPrefix(data, []byte("<svg")) {
			t.Errorf("chart %d is not an SVG", i)
		}
	}
	if !strings.Contains(out, "workbook with 4 sheets") {
		t.Errorf("output = %s", out)
	}

	f, err := excelize.OpenFile(workbook)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 4 {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(sheets[1])
	if err != nil {
		t.Fatal(err)
	}
	// header plus Sports and Superminicar
	if len(rows) != 3 || rows[0][0] != "Vehicle Type" || rows[1][0] != "Sports" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRender_PNG(t *testing.T) {
	csv := writeCSV(t)
	outDir := t.TempDir()

	if _, err := run(t, "render", "--csv", csv, "-t", "yearly", "-y", "1981", "-o", outDir, "-f", "png"); err != nil {
		t.Fatalf("render error = %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "chart-*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 4 {
		t.Errorf("wrote %d png files, want 4", len(matches))
	}
}

func TestRender_Fallback(t *testing.T) {
	csv := writeCSV(t)
	outDir := filepath.Join(t.TempDir(), "charts")

	out, err := run(t, "render", "--csv", csv, "--type", "yearly", "--out", outDir)
	if err != nil {
		t.Fatalf("fallback should not be an error: %v", err)
	}
	if !strings.Contains(out, models.FallbackMessage) {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("no output directory should be created for a fallback")
	}
}

func TestRender_Errors(t *testing.T) {
	csv := writeCSV(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"render", "--csv", csv, "--type", "recession", "--format", "gif"}},
		{"missing csv", []string{"render", "--csv", filepath.Join(t.TempDir(), "nope.csv"), "--type", "recession"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSummary(t *testing.T) {
	csv := writeCSV(t)

	out, err := run(t, "summary", "--csv", csv, "--type", "recession")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}

	for _, want := range []string{
		"Average Automobile Sales fluctuation over Recession Period",
		"Recession == 1, 3 rows",
		"Superminicar",
		"350.00",
		"600.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		name  string
		chart models.Chart
		want  string
	}{
		{
			name:  "long ascii title",
			chart: models.Chart{Index: 4, Title: "Effect of Unemployment Rate on Vehicle Type and Sales"},
			want:  "4 Effect of Unemployment Rate o",
		},
		{
			name:  "forbidden characters",
			chart: models.Chart{Index: 1, Title: "a/b"},
			want:  "1 a b",
		},
		{
			name:  "multi-byte title",
			chart: models.Chart{Index: 2, Title: "Ventes d'automobiles année après année élevées"},
			want:  "2 Ventes d'automobiles année ap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sheetName(tt.chart)
			if got != tt.want {
				t.Errorf("sheetName = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("sheetName %q is not valid UTF-8", got)
			}
			if n := utf8.RuneCountInString(got); n > maxSheetName {
				t.Errorf("sheet name %q has %d characters, limit %d", got, n, maxSheetName)
			}
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName(tests[2].chart)); err != nil {
		t.Errorf("excelize rejected the truncated name: %v", err)
	}
}
