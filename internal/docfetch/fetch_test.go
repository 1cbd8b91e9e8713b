// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

func testFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(http.DefaultClient, types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "test/0.1"},
		PapersDir:  t.TempDir(),
	}, nil)
}

func TestPathLayout(t *testing.T) {
	f := NewFetcher(nil, types.DownloadConfig{PapersDir: "papers"}, nil)
	date := time.Date(2023, 1, 17, 18, 58, 28, 0, time.UTC)

	got := f.Path("2301.07041", "cs.AI", date)
	want := filepath.Join("papers", "cs.AI", "2023-01-17", "2301.07041.pdf")
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestDownload(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake content"))
	}))
	defer ts.Close()

	f := testFetcher(t)
	date := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	path := f.Download(context.Background(), "2301.07041", ts.URL, "cs.AI", date)
	if path == "" {
		t.Fatal("Download() = \"\", want local path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "%PDF-1.4 fake content" {
		t.Errorf("file content = %q", string(data))
	}

	// Idempotent: second call returns the path without another request.
	again := f.Download(context.Background(), "2301.07041", ts.URL, "cs.AI", date)
	if again != path {
		t.Errorf("second Download() = %q, want %q", again, path)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestDownloadFailureReturnsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := testFetcher(t)
	date := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	if path := f.Download(context.Background(), "2301.07041", ts.URL, "cs.AI", date); path != "" {
		t.Errorf("Download() = %q on 404, want empty", path)
	}
	if f.Exists("2301.07041", "cs.AI", date) {
		t.Error("failed download left a file behind")
	}
}

func TestDownloadEmptyURL(t *testing.T) {
	f := testFetcher(t)
	if path := f.Download(context.Background(), "2301.07041", "", "cs.AI", time.Time{}); path != "" {
		t.Errorf("Download() with empty URL = %q, want empty", path)
	}
}

func TestDownloadNoPartialFiles(t *testing.T) {
	// Server that dies mid-body.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte("short"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer ts.Close()

	f := testFetcher(t)
	date := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	if path := f.Download(context.Background(), "2301.07041", ts.URL, "cs.AI", date); path != "" {
		t.Errorf("Download() = %q on truncated body, want empty", path)
	}
	if f.Exists("2301.07041", "cs.AI", date) {
		t.Error("truncated download left the destination file behind")
	}

	// No stray temp files either.
	dir := filepath.Dir(f.Path("2301.07041", "cs.AI", date))
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}
