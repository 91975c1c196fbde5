package services

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autosales-dashboard/internal/config"
)

const cacheVersion = "v1"

// snapshot is the on-disk copy of a fetched CSV body.
type snapshot struct {
	URL       string
	FetchedAt time.Time
	Body      []byte
}

// Loader fetches the sales CSV from a local file or a URL.
type Loader struct {
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewLoader(cfg config.SourceConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
		now:    time.Now,
	}
}

// Load reads the configured source. A local file wins over the URL; a fresh
// snapshot in the cache dir wins over the network.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := l.now()

	var (
		ds  *Dataset
		err error
	)
	if l.cfg.File != "" {
		ds, err = l.loadFile(l.cfg.File)
	} else {
		ds, err = l.loadURL(ctx, l.cfg.URL)
	}
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	count := ds.Len()
	l.logger.Info("dataset loaded",
		"source", ds.Source(),
		"records", count,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(count)/duration.Seconds()))

	return ds, nil
}

func (l *Loader) loadFile(path string) (*Dataset, error) {
	l.logger.Info("reading csv file", "filename", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	ds, err := ParseCSV(file, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ds, nil
}

func (l *Loader) loadURL(ctx context.Context, url string) (*Dataset, error) {
	if snap, err := l.loadFromCache(url); err == nil {
		if age := l.now().Sub(snap.FetchedAt); age >= 0 && age < l.cfg.CacheTTL {
			ds, err := ParseCSV(bytes.NewReader(snap.Body), url)
			if err == nil {
				l.logger.Info("loaded from cache", "url", url, "age", age.Round(time.Second))
				return ds, nil
			}
			l.logger.Warn("discarding unreadable cache snapshot", "url", url, "error", err)
		}
	}

	body, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	ds, err := ParseCSV(bytes.NewReader(body), url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	if err := l.saveToCache(snapshot{URL: url, FetchedAt: l.now(), Body: body}); err != nil {
		l.logger.Warn("failed to save cache", "error", err)
	}
	return ds, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if l.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.FetchTimeout)
		defer cancel()
	}

	l.logger.Info("fetching csv", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: unexpected status %s: %s", url, resp.Status, strings.TrimSpace(string(snippet)))
	}

	reader := resp.Body
	if l.cfg.MaxBytes > 0 {
		reader = io.NopCloser(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if l.cfg.MaxBytes > 0 && int64(len(body)) > l.cfg.MaxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, l.cfg.MaxBytes)
	}
	return body, nil
}

func (l *Loader) cacheFilename(url string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, url)
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return filepath.Join(l.cfg.CacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// saveToCache writes the snapshot to a temp file in the cache dir and renames
// it into place, so a reader never sees a partial snapshot.
func (l *Loader) saveToCache(snap snapshot) (err error) {
	if l.cfg.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cfg.CacheDir, 0755); err != nil {
		return err
	}

	final := l.cacheFilename(snap.URL)
	tmp, err := os.CreateTemp(l.cfg.CacheDir, filepath.Base(final)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func (l *Loader) loadFromCache(url string) (*snapshot, error) {
	if l.cfg.CacheDir == "" {
		return nil, os.ErrNotExist
	}

	file, err := os.Open(l.cacheFilename(url))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.URL != url {
		return nil, fmt.Errorf("cache snapshot is for %s", snap.URL)
	}
	return &snap, nil
}
