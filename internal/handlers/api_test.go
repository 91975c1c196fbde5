package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/services"
)

const salesCSV = `Year,Month,Recession,Automobile_Sales,Advertising_Expenditure,Vehicle_Type,unemployment_rate
1980,Jan,1,100,1000,Superminicar,5.0
1980,Feb,1,200,2000,Sports,6.0
1981,Jan,0,300,1500,Superminicar,4.0
1981,Mar,0,400,2500,Sports,4.5
1982,Feb,1,600,500,Superminicar,7.0
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestServices(t testing.TB) (*services.Reports, *charts.Renderer) {
	t.Helper()
	dataset, err := services.ParseCSV(strings.NewReader(salesCSV), "test")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	logger := discardLogger()
	return services.NewReports(dataset, logger), charts.NewRenderer(logger)
}

func newTestAPI(t testing.TB) *APIHandlers {
	reports, renderer := createTestServices(t)
	return NewAPIHandlers(reports, renderer, discardLogger())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := newTestAPI(t)

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	env := decodeEnvelope(t, w.Body)
	var data struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Records int    `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Status != "healthy" || data.Records != 5 || data.Version == "" {
		t.Errorf("health = %+v", data)
	}
	if w.Header().Get("Cache-Control") != "" {
		t.Error("health should not be cacheable")
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	h := newTestAPI(t)

	w := httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	env := decodeEnvelope(t, w.Body)
	if !env.Success {
		t.Fatal("expected success")
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["record_count"] != float64(5) {
		t.Errorf("record_count = %v", data["record_count"])
	}
	if data["recession_rows"] != float64(3) {
		t.Errorf("recession_rows = %v", data["recession_rows"])
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		name       string
		reportType string
		wantYears  int
	}{
		{"yearly", "Yearly Statistics", 44},
		{"recession", "Recession Period Statistics", 0},
		{"unknown", "Monthly", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/options?report_type="+strings.ReplaceAll(tt.reportType, " ", "+"), nil)
			w := httptest.NewRecorder()
			h.HandleOptions(w, r)

			env := decodeEnvelope(t, w.Body)
			var data struct {
				ReportType string `json:"report_type"`
				Years      []int  `json:"years"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Years == nil {
				t.Error("years should be an empty list, not null")
			}
			if len(data.Years) != tt.wantYears {
				t.Errorf("len(years) = %d, want %d", len(data.Years), tt.wantYears)
			}
			if data.ReportType != tt.reportType {
				t.Errorf("report_type = %q", data.ReportType)
			}
			if w.Header().Get("Cache-Control") != cacheMaxAge {
				t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestAPIHandlers_HandleReport(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		name       string
		query      string
		wantCharts int
		fallback   bool
	}{
		{"recession", "report_type=Recession+Period+Statistics", 4, false},
		{"yearly", "report_type=Yearly+Statistics&year=1981", 4, false},
		{"yearly without year", "report_type=Yearly+Statistics", 0, true},
		{"nothing selected", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleReport(w, httptest.NewRequest(http.MethodGet, "/api/report?"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}

			env := decodeEnvelope(t, w.Body)
			var report struct {
				Charts  []json.RawMessage `json:"charts"`
				Message string            `json:"message"`
			}
			if err := json.Unmarshal(env.Data, &report); err != nil {
				t.Fatal(err)
			}
			if len(report.Charts) != tt.wantCharts {
				t.Errorf("charts = %d, want %d", len(report.Charts), tt.wantCharts)
			}
			if (report.Message != "") != tt.fallback {
				t.Errorf("message = %q, fallback = %v", report.Message, tt.fallback)
			}
		})
	}
}

func TestAPIHandlers_HandleChart(t *testing.T) {
	h := newTestAPI(t)
	router := chi.NewRouter()
	router.Get("/api/charts/{index}", h.HandleChart)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantType   string
		wantCode   string
		wantPrefix []byte
	}{
		{
			name:       "svg default",
			path:       "/api/charts/1?report_type=Recession+Period+Statistics",
			wantStatus: http.StatusOK,
			wantType:   "image/svg+xml",
			wantPrefix: []byte("<svg"),
		},
		{
			name:       "png",
			path:       "/api/charts/3?report_type=Yearly+Statistics&year=1981&format=png",
			wantStatus: http.StatusOK,
			wantType:   "image/png",
			wantPrefix: []byte("\x89PNG"),
		},
		{
			name:       "bad format",
			path:       "/api/charts/1?report_type=Recession+Period+Statistics&format=gif",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "index out of range",
			path:       "/api/charts/5?report_type=Recession+Period+Statistics",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "index zero",
			path:       "/api/charts/0?report_type=Recession+Period+Statistics",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "not a number",
			path:       "/api/charts/first?report_type=Recession+Period+Statistics",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "fallback selection",
			path:       "/api/charts/1?report_type=Yearly+Statistics",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode != "" {
				env := decodeEnvelope(t, w.Body)
				if env.Error.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", env.Error.Code, tt.wantCode)
				}
				return
			}

			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if !bytes.HasPrefix(w.Body.Bytes(), tt.wantPrefix) {
				t.Errorf("body starts with %q", w.Body.Bytes()[:min(8, w.Body.Len())])
			}
		})
	}
}

func TestChartURL(t *testing.T) {
	sel := models.NewSelection("Yearly Statistics", "1981")
	got := chartURL(sel, 2, charts.FormatPNG)
	want := "/api/charts/2?format=png&report_type=Yearly+Statistics&year=1981"
	if got != want {
		t.Errorf("chartURL = %q, want %q", got, want)
	}
}

func TestAPIHandlers_HandleReport_Canceled(t *testing.T) {
	h := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := httptest.NewRequest(http.MethodGet, "/api/report?report_type=Recession+Period+Statistics", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandleReport(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if env := decodeEnvelope(t, w.Body); env.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("error code = %q", env.Error.Code)
	}
}
