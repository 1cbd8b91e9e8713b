// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textextract pulls text out of downloaded documents. It tries the
// OCR HTTP API first and falls back to an in-process PDF parse; a failure
// of both degrades to an empty result, never an error to the pipeline.
package textextract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/httputil"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Extractor extracts text from local PDF files.
type Extractor struct {
	http *http.Client
	cfg  types.ExtractionConfig
	log  *zap.Logger
}

// NewExtractor builds an extractor. When cfg.OCRToken is empty the OCR API
// is never called and extraction goes straight to the local parse.
func NewExtractor(httpClient *http.Client, cfg types.ExtractionConfig, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Extractor{http: httpClient, cfg: cfg, log: log}
}

// ExtractText returns the text content of the PDF at path. It attempts the
// OCR API first; an error or empty result falls through to the local
// parser. Total failure returns the empty string.
func (e *Extractor) ExtractText(ctx context.Context, path string) string {
	if _, err := os.Stat(path); err != nil {
		e.log.Warn("document not found for extraction", zap.String("path", path))
		return ""
	}

	if e.cfg.OCRToken != "" {
		text, err := e.callOCR(ctx, path)
		if err != nil {
			e.log.Warn("OCR extraction failed, falling back", zap.String("path", path), zap.Error(err))
		} else if text != "" {
			e.log.Info("OCR extraction succeeded",
				zap.String("path", path), zap.Int("chars", len(text)))
			return text
		}
	}

	text, err := extractLocal(path)
	if err != nil {
		e.log.Warn("local PDF extraction failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	e.log.Info("local extraction succeeded", zap.String("path", path), zap.Int("chars", len(text)))
	return text
}

// OCR API request/response structures.
type ocrRequest struct {
	Image         string `json:"image"`
	RecognizeLong bool   `json:"recognize_long"`
	Rotate        bool   `json:"rotate"`
}

type ocrResponse struct {
	Success bool        `json:"success"`
	Results []ocrResult `json:"results"`
}

type ocrResult struct {
	RecTexts []string `json:"rec_texts"`
}

// callOCR sends the base64-encoded PDF to the OCR API and joins the
// recognized lines.
func (e *Extractor) callOCR(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}

	body, err := json.Marshal(ocrRequest{
		Image:         base64.StdEncoding.EncodeToString(data),
		RecognizeLong: true,
		Rotate:        true,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s?access_token=%s", e.cfg.OCRURL, e.cfg.OCRToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, e.http, req, 0)
	if err != nil {
		return "", fmt.Errorf("OCR API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR API returned HTTP %d", resp.StatusCode)
	}

	var or ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("decoding OCR response: %w", err)
	}
	if !or.Success {
		return "", fmt.Errorf("OCR API reported failure")
	}

	var lines []string
	for _, r := range or.Results {
		lines = append(lines, r.RecTexts...)
	}
	return strings.Join(lines, "\n"), nil
}

// extractLocal parses the PDF's embedded text layer.
func extractLocal(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
