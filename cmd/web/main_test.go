package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/config"
	"autosales-dashboard/internal/middleware"
	"autosales-dashboard/internal/server"
	"autosales-dashboard/internal/services"
)

const salesCSV = `Year,Month,Recession,Automobile_Sales,Advertising_Expenditure,Vehicle_Type,unemployment_rate
1980,Jan,1,100,1000,Superminicar,5.0
1980,Feb,1,200,2000,Sports,6.0
1981,Jan,0,300,1500,Superminicar,4.0
2010,Mar,0,400,2500,Sports,4.5
`

func newTestHandler(t *testing.T, security config.SecurityConfig) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dataset, err := services.ParseCSV(strings.NewReader(salesCSV), "test")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	srv := server.NewServer(services.NewReports(dataset, logger), charts.NewRenderer(logger), logger)

	cfg := &config.Config{Security: security}
	return newHandler(srv, cfg, middleware.NewRateLimiter(security), logger)
}

// Integration tests for HTTP routes behind the middleware chain
func TestHandler_Routes(t *testing.T) {
	h := newTestHandler(t, config.SecurityConfig{
		AllowedOrigins: []string{"http://localhost:8050"},
		TrustedProxies: []string{"127.0.0.1"},
	})

	tests := []struct {
		path           string
		expectedStatus int
		contains       string
	}{
		{"/", http.StatusOK, "Automobile Sales Statistics Dashboard"},
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/api/options?report_type=Yearly+Statistics", http.StatusOK, `"years":[1980,`},
		{"/api/report?report_type=Recession+Period+Statistics", http.StatusOK, "Average Automobile Sales fluctuation over Recession Period"},
		{"/api/charts/9?report_type=Recession+Period+Statistics", http.StatusNotFound, "NOT_FOUND"},
		{"/nope", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body missing %q", tt.contains)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header missing")
			}
			if w.Header().Get("Content-Security-Policy") != middleware.ContentSecurityPolicy {
				t.Error("security headers missing")
			}
		})
	}
}

func TestHandler_DefaultYearReport(t *testing.T) {
	h := newTestHandler(t, config.SecurityConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	for _, want := range []string{
		`<option value="2010" selected>2010</option>`,
		`id="chart-4"`,
		`href="/api/charts/1?format=png`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestHandler_RateLimited(t *testing.T) {
	h := newTestHandler(t, config.SecurityConfig{
		EnableRateLimit: true,
		RateLimitRPS:    1,
		RateLimitBurst:  1,
	})

	codes := make([]int, 2)
	for i := range codes {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 429]", codes)
	}
}

func TestHandler_RecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("render exploded")
	})

	h := newHandler(panicking, cfg, middleware.NewRateLimiter(cfg.Security), logger)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", w.Body.String())
	}
}
