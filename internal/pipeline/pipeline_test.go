// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-assistant/internal/catalog"
	"github.com/pdiddy/paper-assistant/internal/docfetch"
	"github.com/pdiddy/paper-assistant/internal/genai"
	"github.com/pdiddy/paper-assistant/internal/store"
	"github.com/pdiddy/paper-assistant/internal/textextract"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// rewriteTransport sends every request to the test server regardless of the
// host baked into the client packages.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func clientFor(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Transport: rewriteTransport{target: u}}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "papers.json")}, nil)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return s
}

func feedXML(entries string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom">` +
		entries + `</feed>`
}

func feedEntry(id, pdfHref string) string {
	link := ""
	if pdfHref != "" {
		link = fmt.Sprintf(`<link title="pdf" href="%s"/>`, pdfHref)
	}
	return fmt.Sprintf(`<entry>
		<id>http://arxiv.org/abs/%sv1</id>
		<title>Paper %s</title>
		<summary>Abstract %s</summary>
		<published>2023-01-17T10:00:00Z</published>
		<author><name>Alice Smith</name></author>
		<primary_category term="cs.AI"/>
		<category term="cs.AI"/>
		%s
	</entry>`, id, id, id, link)
}

// newFetchPipeline wires a pipeline whose catalog and fetcher both talk to
// mux through a rewriting transport.
func newFetchPipeline(t *testing.T, mux *http.ServeMux) (*Pipeline, *store.Store) {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	hc := clientFor(t, ts)
	st := openTestStore(t)

	cat := catalog.NewClient(hc, types.CatalogConfig{
		HTTPConfig:   types.HTTPConfig{Timeout: 10 * time.Second},
		RequestDelay: time.Millisecond,
	})
	fetcher := docfetch.NewFetcher(hc, types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second},
		PapersDir:  t.TempDir(),
	}, nil)
	extractor := textextract.NewExtractor(hc, types.ExtractionConfig{}, nil)
	gen := genai.NewClient(hc, types.GenerationConfig{APIKey: "k", Model: "m"}, nil)

	return New(cat, fetcher, extractor, gen, st, nil), st
}

func TestFetchCategoryPartialDownloadFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedXML(
			feedEntry("2301.00001", "http://arxiv.org/pdf-ok-1") +
				feedEntry("2301.00002", "http://arxiv.org/pdf-bad") +
				feedEntry("2301.00003", "http://arxiv.org/pdf-ok-3"),
		)))
	})
	mux.HandleFunc("/pdf-ok-1", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("%PDF-1")) })
	mux.HandleFunc("/pdf-ok-3", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("%PDF-3")) })
	mux.HandleFunc("/pdf-bad", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	// The catalog query path is "/" on the real host after rewrite; route
	// everything unknown there too.
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedXML(
			feedEntry("2301.00001", "http://arxiv.org/pdf-ok-1") +
				feedEntry("2301.00002", "http://arxiv.org/pdf-bad") +
				feedEntry("2301.00003", "http://arxiv.org/pdf-ok-3"),
		)))
	})

	pipe, st := newFetchPipeline(t, mux)

	var progress bytes.Buffer
	day := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)
	result, err := pipe.FetchCategory(context.Background(), "cs.AI", &day, &progress)
	if err != nil {
		t.Fatalf("FetchCategory() error = %v", err)
	}

	if result.Found != 3 {
		t.Errorf("Found = %d, want 3", result.Found)
	}
	if result.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2 (one download failed)", result.Downloaded)
	}
	if result.Saved != 3 {
		t.Errorf("Saved = %d, want 3 (failed download still saves metadata)", result.Saved)
	}
	if st.Len() != 3 {
		t.Errorf("store has %d papers, want 3", st.Len())
	}

	// The paper whose download failed has no local path.
	p, err := st.Get("2301.00002")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.PDFPath != "" {
		t.Errorf("PDFPath = %q for failed download, want empty", p.PDFPath)
	}

	if !strings.Contains(progress.String(), "found 3, downloaded 2, saved 3") {
		t.Errorf("progress output = %q", progress.String())
	}
}

func TestFetchCategorySkipsDuplicates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedXML(feedEntry("2301.00001", ""))))
	})

	pipe, st := newFetchPipeline(t, mux)
	day := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	first, err := pipe.FetchCategory(context.Background(), "cs.AI", &day, nil)
	if err != nil {
		t.Fatalf("first FetchCategory() error = %v", err)
	}
	if first.Saved != 1 {
		t.Fatalf("first Saved = %d, want 1", first.Saved)
	}

	second, err := pipe.FetchCategory(context.Background(), "cs.AI", &day, nil)
	if err != nil {
		t.Fatalf("second FetchCategory() error = %v", err)
	}
	if second.Found != 1 || second.Saved != 0 {
		t.Errorf("second run Found = %d Saved = %d, want 1 and 0", second.Found, second.Saved)
	}
	if st.Len() != 1 {
		t.Errorf("store has %d papers, want 1", st.Len())
	}
}

func TestFetchAllIsolatesCategoryFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "cs.BAD") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(feedXML(feedEntry("2301.00001", ""))))
	})

	pipe, _ := newFetchPipeline(t, mux)
	day := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	result := pipe.FetchAll(context.Background(), []string{"cs.AI", "cs.BAD"}, &day, nil)
	if len(result.Categories) != 1 {
		t.Errorf("Categories = %v, want one success", result.Categories)
	}
	if _, ok := result.Errors["cs.BAD"]; !ok {
		t.Errorf("Errors = %v, want cs.BAD entry", result.Errors)
	}
}

// newProcessPipeline wires a pipeline whose extraction and generation
// endpoints are controlled by the test.
func newProcessPipeline(t *testing.T, ocrHandler, genHandler http.HandlerFunc) (*Pipeline, *store.Store) {
	t.Helper()

	genSrv := httptest.NewServer(genHandler)
	t.Cleanup(genSrv.Close)
	genClient := genai.NewClient(clientFor(t, genSrv), types.GenerationConfig{APIKey: "k", Model: "m"}, nil)

	extractCfg := types.ExtractionConfig{}
	var extractClient *http.Client
	if ocrHandler != nil {
		ocrSrv := httptest.NewServer(ocrHandler)
		t.Cleanup(ocrSrv.Close)
		extractCfg = types.ExtractionConfig{OCRURL: ocrSrv.URL, OCRToken: "tok"}
		extractClient = ocrSrv.Client()
	}
	extractor := textextract.NewExtractor(extractClient, extractCfg, nil)

	st := openTestStore(t)
	cat := catalog.NewClient(http.DefaultClient, types.CatalogConfig{RequestDelay: time.Millisecond})
	fetcher := docfetch.NewFetcher(http.DefaultClient, types.DownloadConfig{PapersDir: t.TempDir()}, nil)

	return New(cat, fetcher, extractor, genClient, st, nil), st
}

func addPaperWithPDF(t *testing.T, st *store.Store, id string) string {
	t.Helper()
	paper := types.NewPaper(types.PaperMetadata{
		ArxivID:         id,
		Title:           "Paper " + id,
		Abstract:        "Abstract " + id,
		PublishedDate:   time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
		PrimaryCategory: "cs.AI",
	})
	pdfPath := filepath.Join(t.TempDir(), id+".pdf")
	if err := os.WriteFile(pdfPath, []byte("fake pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	paper.PDFPath = pdfPath
	if _, err := st.Add(paper); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return pdfPath
}

func okAnalysisHandler(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `{"choices": [{"message": {"content": "{\"summary\": \"Generated.\", \"relevance_score\": 80}"}}]}`)
}

func okOCRHandler(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `{"success": true, "results": [{"rec_texts": ["extracted text"]}]}`)
}

func TestProcessPaperComplete(t *testing.T) {
	pipe, st := newProcessPipeline(t, okOCRHandler, okAnalysisHandler)
	addPaperWithPDF(t, st, "2301.00001")

	result, err := pipe.ProcessPaper(context.Background(), "2301.00001", ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessPaper() error = %v", err)
	}

	if !result.TextExtracted || !result.OCRSuccess {
		t.Errorf("result = %+v, want extraction success", result)
	}
	if !result.AnalysisGenerated {
		t.Error("AnalysisGenerated = false")
	}
	if result.Message() != "Processing complete" {
		t.Errorf("Message() = %q", result.Message())
	}

	p, err := st.Get("2301.00001")
	if err != nil {
		t.Fatal(err)
	}
	if p.ExtractedText != "extracted text" {
		t.Errorf("ExtractedText = %q", p.ExtractedText)
	}
	if p.AIAnalysis == nil || p.AIAnalysis.Summary != "Generated." {
		t.Errorf("AIAnalysis = %+v", p.AIAnalysis)
	}
	if !p.Processed {
		t.Error("Processed = false")
	}
}

func TestProcessPaperPartialAnalysisFailure(t *testing.T) {
	pipe, st := newProcessPipeline(t, okOCRHandler, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	addPaperWithPDF(t, st, "2301.00001")

	result, err := pipe.ProcessPaper(context.Background(), "2301.00001", ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessPaper() error = %v, analysis failure must not raise", err)
	}

	if !result.TextExtracted {
		t.Error("TextExtracted = false")
	}
	if result.AnalysisGenerated {
		t.Error("AnalysisGenerated = true, want false")
	}
	if result.Message() != "Partial processing completed" {
		t.Errorf("Message() = %q", result.Message())
	}

	// Text was extracted, so the paper still counts as processed.
	p, _ := st.Get("2301.00001")
	if !p.Processed {
		t.Error("Processed = false after successful extraction")
	}
}

func TestProcessPaperNoPDF(t *testing.T) {
	pipe, st := newProcessPipeline(t, nil, okAnalysisHandler)
	paper := types.NewPaper(types.PaperMetadata{
		ArxivID:       "2301.00001",
		PublishedDate: time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
	})
	if _, err := st.Add(paper); err != nil {
		t.Fatal(err)
	}

	if _, err := pipe.ProcessPaper(context.Background(), "2301.00001", ProcessOptions{}); !errors.Is(err, ErrNoPDF) {
		t.Errorf("ProcessPaper() error = %v, want ErrNoPDF", err)
	}
}

func TestProcessPaperMissingFile(t *testing.T) {
	pipe, st := newProcessPipeline(t, nil, okAnalysisHandler)
	paper := types.NewPaper(types.PaperMetadata{
		ArxivID:       "2301.00001",
		PublishedDate: time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
	})
	paper.PDFPath = "/does/not/exist.pdf"
	if _, err := st.Add(paper); err != nil {
		t.Fatal(err)
	}

	if _, err := pipe.ProcessPaper(context.Background(), "2301.00001", ProcessOptions{}); !errors.Is(err, ErrNoPDF) {
		t.Errorf("ProcessPaper() error = %v, want ErrNoPDF", err)
	}
}

func TestProcessPaperNotFound(t *testing.T) {
	pipe, _ := newProcessPipeline(t, nil, okAnalysisHandler)
	if _, err := pipe.ProcessPaper(context.Background(), "9999.00000", ProcessOptions{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ProcessPaper() error = %v, want ErrNotFound", err)
	}
}

func TestProcessPaperSkipOCR(t *testing.T) {
	ocrCalled := false
	pipe, st := newProcessPipeline(t, func(w http.ResponseWriter, _ *http.Request) {
		ocrCalled = true
	}, okAnalysisHandler)
	addPaperWithPDF(t, st, "2301.00001")

	result, err := pipe.ProcessPaper(context.Background(), "2301.00001", ProcessOptions{SkipOCR: true})
	if err != nil {
		t.Fatalf("ProcessPaper() error = %v", err)
	}
	if ocrCalled {
		t.Error("OCR called despite SkipOCR")
	}
	if result.TextExtracted {
		t.Error("TextExtracted = true with SkipOCR")
	}
	if !result.AnalysisGenerated {
		t.Error("AnalysisGenerated = false")
	}
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	pipe, st := newProcessPipeline(t, okOCRHandler, okAnalysisHandler)

	addPaperWithPDF(t, st, "2301.00001")
	addPaperWithPDF(t, st, "2301.00002")

	// A paper with no document is skipped, not failed.
	noPDF := types.NewPaper(types.PaperMetadata{
		ArxivID:       "2301.00003",
		PublishedDate: time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
	})
	if _, err := st.Add(noPDF); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	result, err := pipe.ProcessAll(context.Background(), &out)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}

	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 0 {
		t.Errorf("Failed = %d, want 0", result.Failed)
	}
	if result.Total() != 3 {
		t.Errorf("Total() = %d, want 3", result.Total())
	}
}

func TestProcessAllSkipsAlreadyProcessed(t *testing.T) {
	pipe, st := newProcessPipeline(t, okOCRHandler, okAnalysisHandler)
	addPaperWithPDF(t, st, "2301.00001")
	if err := st.SetProcessed("2301.00001", true); err != nil {
		t.Fatal(err)
	}

	result, err := pipe.ProcessAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if result.Total() != 0 {
		t.Errorf("Total() = %d, want 0 (processed papers not revisited)", result.Total())
	}
}

func TestChatContext(t *testing.T) {
	pipe, st := newProcessPipeline(t, nil, okAnalysisHandler)
	addPaperWithPDF(t, st, "2301.00001")

	// Chat before extraction fails fast, before any upstream call.
	if _, _, err := pipe.ChatContext("2301.00001", "hi"); !errors.Is(err, ErrNotExtracted) {
		t.Errorf("ChatContext() error = %v, want ErrNotExtracted", err)
	}

	if err := st.SetExtractedText("2301.00001", "paper text"); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendChatMessage("2301.00001", types.ChatMessage{
		Role: types.RoleUser, Content: "earlier question",
	}); err != nil {
		t.Fatal(err)
	}

	text, history, err := pipe.ChatContext("2301.00001", "new question")
	if err != nil {
		t.Fatalf("ChatContext() error = %v", err)
	}
	if text != "paper text" {
		t.Errorf("paper text = %q", text)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want stored turn plus new message", len(history))
	}
	if history[1].Content != "new question" || history[1].Role != "user" {
		t.Errorf("last history entry = %+v", history[1])
	}
}

func TestGenerateSummary(t *testing.T) {
	pipe, st := newProcessPipeline(t, nil, okAnalysisHandler)
	addPaperWithPDF(t, st, "2301.00001")

	if _, err := pipe.GenerateSummary(context.Background(), "2301.00001"); !errors.Is(err, ErrNotExtracted) {
		t.Errorf("GenerateSummary() error = %v, want ErrNotExtracted", err)
	}

	if err := st.SetExtractedText("2301.00001", "paper text"); err != nil {
		t.Fatal(err)
	}

	analysis, err := pipe.GenerateSummary(context.Background(), "2301.00001")
	if err != nil {
		t.Fatalf("GenerateSummary() error = %v", err)
	}
	if analysis.Summary != "Generated." {
		t.Errorf("Summary = %q", analysis.Summary)
	}

	p, _ := st.Get("2301.00001")
	if p.AIAnalysis == nil || p.AIAnalysis.Summary != "Generated." {
		t.Error("analysis not persisted")
	}
}
