package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"autosales-dashboard/internal/config"
)

func csvServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func sourceConfig(url, cacheDir string) config.SourceConfig {
	return config.SourceConfig{
		URL:          url,
		FetchTimeout: 5 * time.Second,
		MaxBytes:     1 << 20,
		CacheDir:     cacheDir,
		CacheTTL:     time.Hour,
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(salesCSV), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := sourceConfig("http://127.0.0.1:1/unused.csv", "")
	cfg.File = path

	ds, err := NewLoader(cfg, discardLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 5 {
		t.Errorf("Len() = %d, want 5", ds.Len())
	}
	if ds.Source() != path {
		t.Errorf("Source() = %q, want %q", ds.Source(), path)
	}
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	cfg := sourceConfig("", "")
	cfg.File = filepath.Join(t.TempDir(), "nope.csv")

	if _, err := NewLoader(cfg, discardLogger()).Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_LoadURL_UsesCache(t *testing.T) {
	srv, hits := csvServer(t, http.StatusOK, salesCSV)
	cacheDir := t.TempDir()
	url := srv.URL + "/historical_automobile_sales.csv"

	for i := range 3 {
		ds, err := NewLoader(sourceConfig(url, cacheDir), discardLogger()).Load(context.Background())
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if ds.Len() != 5 {
			t.Errorf("load %d: Len() = %d", i, ds.Len())
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_v1.gob") {
		t.Errorf("cache dir entries = %v", entries)
	}
}

func TestLoader_LoadURL_ReplacesTruncatedSnapshot(t *testing.T) {
	srv, hits := csvServer(t, http.StatusOK, salesCSV)
	cfg := sourceConfig(srv.URL, t.TempDir())
	l := NewLoader(cfg, discardLogger())

	final := l.cacheFilename(srv.URL)
	if err := os.WriteFile(final, []byte{0x1f, 0xff}, 0o644); err != nil {
		t.Fatal(err)
	}

	for i := range 2 {
		if _, err := NewLoader(cfg, discardLogger()).Load(context.Background()); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
	if snap, err := l.loadFromCache(srv.URL); err != nil || snap.URL != srv.URL {
		t.Errorf("loadFromCache() = %+v, %v", snap, err)
	}
	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != filepath.Base(final) {
		t.Errorf("cache dir entries = %v", entries)
	}
}

func TestLoader_SaveToCache_FailureLeavesNoTempFile(t *testing.T) {
	cacheDir := t.TempDir()
	l := NewLoader(sourceConfig("https://example.com/sales.csv", cacheDir), discardLogger())

	// A directory at the snapshot path makes the final rename fail.
	blocker := l.cacheFilename("https://example.com/sales.csv")
	if err := os.MkdirAll(filepath.Join(blocker, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := l.saveToCache(snapshot{URL: "https://example.com/sales.csv", FetchedAt: time.Now(), Body: []byte(salesCSV)})
	if err == nil {
		t.Fatal("saveToCache() should fail when the snapshot path is a directory")
	}

	leftovers, err := filepath.Glob(filepath.Join(cacheDir, "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestLoader_LoadURL_ExpiredCache(t *testing.T) {
	srv, hits := csvServer(t, http.StatusOK, salesCSV)
	cfg := sourceConfig(srv.URL, t.TempDir())

	if _, err := NewLoader(cfg, discardLogger()).Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	later := NewLoader(cfg, discardLogger())
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := later.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestLoader_LoadURL_CacheDisabled(t *testing.T) {
	srv, hits := csvServer(t, http.StatusOK, salesCSV)
	cfg := sourceConfig(srv.URL, "")

	for range 2 {
		if _, err := NewLoader(cfg, discardLogger()).Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestLoader_LoadURL_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		maxBytes int64
		wantMsg  string
	}{
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    "storage backend unavailable",
			wantMsg: "storage backend unavailable",
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    "no such key",
			wantMsg: "404",
		},
		{
			name:     "body too large",
			status:   http.StatusOK,
			body:     salesCSV,
			maxBytes: 64,
			wantMsg:  "exceeds 64 bytes",
		},
		{
			name:    "not a sales csv",
			status:  http.StatusOK,
			body:    "a,b\n1,2\n",
			wantMsg: "missing columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := csvServer(t, tt.status, tt.body)
			cacheDir := t.TempDir()
			cfg := sourceConfig(srv.URL, cacheDir)
			if tt.maxBytes > 0 {
				cfg.MaxBytes = tt.maxBytes
			}

			_, err := NewLoader(cfg, discardLogger()).Load(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err, tt.wantMsg)
			}

			entries, _ := os.ReadDir(cacheDir)
			if len(entries) != 0 {
				t.Errorf("failed loads should not be cached, found %d entries", len(entries))
			}
		})
	}
}

func TestLoader_LoadURL_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := sourceConfig(srv.URL, "")
	cfg.FetchTimeout = 50 * time.Millisecond

	if _, err := NewLoader(cfg, discardLogger()).Load(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestLoader_CacheFilename(t *testing.T) {
	l := NewLoader(sourceConfig("", "/tmp/cache"), discardLogger())

	got := l.cacheFilename("https://example.com/data files/sales.csv?x=1")
	if filepath.Dir(got) != "/tmp/cache" {
		t.Errorf("dir = %q", filepath.Dir(got))
	}
	if base := filepath.Base(got); strings.ContainsAny(base, "/:?= ") {
		t.Errorf("unsanitised name %q", base)
	}
}
