// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docfetch downloads paper documents to a deterministic local path
// keyed by category, date, and identifier. A failed download never
// propagates an error past this package: callers get an empty path and the
// pipeline moves on.
package docfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Fetcher downloads PDFs into the configured papers directory.
type Fetcher struct {
	http *http.Client
	cfg  types.DownloadConfig
	log  *zap.Logger
}

// NewFetcher builds a document fetcher.
func NewFetcher(httpClient *http.Client, cfg types.DownloadConfig, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{http: httpClient, cfg: cfg, log: log}
}

// Path returns the local path a document would occupy:
// papersDir/<category>/<YYYY-MM-DD>/<id>.pdf. A zero date means today.
func (f *Fetcher) Path(id, category string, date time.Time) string {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return filepath.Join(f.cfg.PapersDir, category, date.Format("2006-01-02"), id+".pdf")
}

// Exists reports whether the document is already on disk.
func (f *Fetcher) Exists(id, category string, date time.Time) bool {
	_, err := os.Stat(f.Path(id, category, date))
	return err == nil
}

// Download fetches url into the deterministic path for (id, category, date)
// and returns the local path. The operation is idempotent: an existing file
// is returned without re-downloading. On any failure it returns the empty
// string; errors are logged, never raised.
func (f *Fetcher) Download(ctx context.Context, id, url, category string, date time.Time) string {
	dest := f.Path(id, category, date)

	if _, err := os.Stat(dest); err == nil {
		f.log.Debug("document already present", zap.String("arxiv_id", id), zap.String("path", dest))
		return dest
	}

	if url == "" {
		return ""
	}

	if err := f.download(ctx, url, dest); err != nil {
		f.log.Warn("document download failed", zap.String("arxiv_id", id), zap.Error(err))
		return ""
	}

	f.log.Info("downloaded document", zap.String("arxiv_id", id), zap.String("path", dest))
	return dest
}

// download writes url to destPath via a temp file in the same directory,
// renamed into place only on success.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".docfetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
