// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates the paper lifecycle: fetch metadata from
// the catalog, download documents, extract text, and generate analysis,
// updating the store after each step. Every batch loop isolates per-item
// failures: one paper failing increments a counter and the batch moves on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/catalog"
	"github.com/pdiddy/paper-assistant/internal/docfetch"
	"github.com/pdiddy/paper-assistant/internal/genai"
	"github.com/pdiddy/paper-assistant/internal/store"
	"github.com/pdiddy/paper-assistant/internal/textextract"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// ErrNoPDF reports that a paper has no downloaded document, so extraction
// and processing cannot run. The caller can recover by fetching the
// document first.
var ErrNoPDF = errors.New("paper document not downloaded")

// ErrNotExtracted reports that a paper's text has not been extracted yet.
// Chat and summary generation require extraction first.
var ErrNotExtracted = errors.New("paper text not extracted")

// Pipeline wires the lifecycle stages together around the store.
type Pipeline struct {
	catalog   *catalog.Client
	fetcher   *docfetch.Fetcher
	extractor *textextract.Extractor
	genai     *genai.Client
	store     *store.Store
	log       *zap.Logger
}

// New builds a pipeline over the given collaborators.
func New(cat *catalog.Client, fetcher *docfetch.Fetcher, extractor *textextract.Extractor, gen *genai.Client, st *store.Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		catalog:   cat,
		fetcher:   fetcher,
		extractor: extractor,
		genai:     gen,
		store:     st,
		log:       log,
	}
}

// Store exposes the underlying paper store.
func (p *Pipeline) Store() *store.Store { return p.store }

// GenAI exposes the generation client for operations the request layer
// calls directly (explain, chat).
func (p *Pipeline) GenAI() *genai.Client { return p.genai }

// FetchResult tallies one category fetch.
type FetchResult struct {
	Category   string
	Date       string
	Found      int
	Downloaded int
	Saved      int

	// Papers holds the newly saved records (duplicates excluded).
	Papers []*types.Paper
}

// FetchCategory fetches catalog metadata for (category, day), downloads
// each paper's document best-effort, and adds new papers to the store.
// Duplicate identifiers are skipped silently; a failed download never
// blocks storage of the metadata. Catalog transport failures are returned
// to the caller. Progress lines go to w.
func (p *Pipeline) FetchCategory(ctx context.Context, category string, day *time.Time, w io.Writer) (FetchResult, error) {
	if w == nil {
		w = io.Discard
	}

	date := time.Now().UTC()
	if day != nil {
		date = *day
	}
	result := FetchResult{Category: category, Date: date.Format("2006-01-02")}

	metas, err := p.catalog.FetchByCategory(ctx, category, day)
	if err != nil {
		return result, fmt.Errorf("fetching category %s: %w", category, err)
	}
	result.Found = len(metas)

	for _, meta := range metas {
		paper := types.NewPaper(meta)

		path := p.fetcher.Download(ctx, meta.ArxivID, meta.PDFURL, meta.PrimaryCategory, meta.PublishedDate)
		if path != "" {
			paper.PDFPath = path
			result.Downloaded++
		}

		added, err := p.store.Add(paper)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", meta.ArxivID, err)
			continue
		}
		if !added {
			fmt.Fprintf(w, "skipped %s (already stored)\n", meta.ArxivID)
			continue
		}
		fmt.Fprintf(w, "saved   %s\n", meta.ArxivID)
		result.Saved++
		result.Papers = append(result.Papers, paper)
	}

	fmt.Fprintf(w, "\n%s %s: found %d, downloaded %d, saved %d\n",
		category, result.Date, result.Found, result.Downloaded, result.Saved)
	return result, nil
}

// FetchAllResult maps categories to their fetch tallies. A category whose
// catalog query failed lands in Errors instead; the batch never aborts.
type FetchAllResult struct {
	Categories map[string]FetchResult
	Errors     map[string]string
}

// FetchAll runs FetchCategory for each category in order, isolating
// failures per category.
func (p *Pipeline) FetchAll(ctx context.Context, categories []string, day *time.Time, w io.Writer) FetchAllResult {
	out := FetchAllResult{
		Categories: make(map[string]FetchResult),
		Errors:     make(map[string]string),
	}
	for _, cat := range categories {
		res, err := p.FetchCategory(ctx, cat, day, w)
		if err != nil {
			p.log.Error("category fetch failed", zap.String("category", cat), zap.Error(err))
			out.Errors[cat] = err.Error()
			continue
		}
		out.Categories[cat] = res
	}
	return out
}

// ProcessOptions controls a single-paper processing pass.
type ProcessOptions struct {
	// SkipOCR skips the extraction stage and analyzes with whatever text
	// is already stored.
	SkipOCR bool
}

// ProcessResult reports which milestones a processing pass reached.
type ProcessResult struct {
	ArxivID           string
	OCRSuccess        bool
	TextExtracted     bool
	AnalysisGenerated bool
}

// Complete reports whether every stage succeeded.
func (r ProcessResult) Complete() bool { return r.AnalysisGenerated }

// Message renders the qualified outcome for API responses.
func (r ProcessResult) Message() string {
	if r.Complete() {
		return "Processing complete"
	}
	return "Partial processing completed"
}

// ProcessPaper runs extraction and analysis for one paper. Extraction
// failure does not abort analysis (which then works from the abstract
// alone), and analysis failure after a successful extraction still marks
// the paper processed: partial success is reported, not raised.
func (p *Pipeline) ProcessPaper(ctx context.Context, id string, opts ProcessOptions) (ProcessResult, error) {
	result := ProcessResult{ArxivID: id}

	paper, err := p.store.Get(id)
	if err != nil {
		return result, err
	}
	if paper.PDFPath == "" {
		return result, ErrNoPDF
	}
	if _, err := os.Stat(paper.PDFPath); err != nil {
		return result, ErrNoPDF
	}

	if !opts.SkipOCR {
		if text := p.extractor.ExtractText(ctx, paper.PDFPath); text != "" {
			if err := p.store.SetExtractedText(id, text); err != nil {
				return result, err
			}
			paper.ExtractedText = text
			result.OCRSuccess = true
			result.TextExtracted = true
		}
	}

	analysis, err := p.genai.AnalyzePaper(ctx, paper.Metadata.Title, paper.Metadata.Abstract, paper.ExtractedText)
	if err != nil {
		p.log.Warn("analysis generation failed", zap.String("arxiv_id", id), zap.Error(err))
	} else {
		if err := p.store.SetAnalysis(id, analysis); err != nil {
			return result, err
		}
		result.AnalysisGenerated = true
	}

	if result.AnalysisGenerated || result.TextExtracted || paper.ExtractedText != "" {
		if err := p.store.SetProcessed(id, true); err != nil {
			return result, err
		}
	}

	return result, nil
}

// BatchResult tallies a ProcessAll run.
type BatchResult struct {
	Processed int
	Failed    int
	Skipped   int
}

// Total returns the number of papers visited.
func (r BatchResult) Total() int { return r.Processed + r.Failed + r.Skipped }

// ProcessAll processes every unprocessed paper. Papers without a document
// are skipped; individual failures are counted and the batch continues.
func (p *Pipeline) ProcessAll(ctx context.Context, w io.Writer) (BatchResult, error) {
	if w == nil {
		w = io.Discard
	}

	processed := false
	papers, err := p.store.List(store.Filter{Processed: &processed}, 0, 0)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, paper := range papers {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		id := paper.ID()
		res, err := p.ProcessPaper(ctx, id, ProcessOptions{})
		switch {
		case errors.Is(err, ErrNoPDF):
			fmt.Fprintf(w, "skipped %s (no document)\n", id)
			result.Skipped++
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			result.Failed++
		case res.Complete():
			fmt.Fprintf(w, "processed %s\n", id)
			result.Processed++
		default:
			fmt.Fprintf(w, "partial %s\n", id)
			result.Processed++
		}
	}

	fmt.Fprintf(w, "\nprocessed: %d, failed: %d, skipped: %d\n",
		result.Processed, result.Failed, result.Skipped)
	return result, nil
}

// ChatContext builds the generation inputs for a chat turn: the paper's
// extracted text and its stored history plus the new user message. It fails
// with ErrNotExtracted before any upstream call when the paper has no text.
func (p *Pipeline) ChatContext(id, userMessage string) (paperText string, history []genai.Message, err error) {
	paper, err := p.store.Get(id)
	if err != nil {
		return "", nil, err
	}
	if paper.ExtractedText == "" {
		return "", nil, ErrNotExtracted
	}

	for _, msg := range paper.ChatHistory {
		history = append(history, genai.Message{Role: string(msg.Role), Content: msg.Content})
	}
	history = append(history, genai.Message{Role: string(types.RoleUser), Content: userMessage})
	return paper.ExtractedText, history, nil
}

// GenerateSummary regenerates the paper's analysis from its full extracted
// text and persists it. It fails with ErrNotExtracted when no text exists.
func (p *Pipeline) GenerateSummary(ctx context.Context, id string) (types.AIAnalysis, error) {
	paper, err := p.store.Get(id)
	if err != nil {
		return types.AIAnalysis{}, err
	}
	if paper.ExtractedText == "" {
		return types.AIAnalysis{}, ErrNotExtracted
	}

	analysis, err := p.genai.AnalyzePaper(ctx, paper.Metadata.Title, paper.Metadata.Abstract, paper.ExtractedText)
	if err != nil {
		return types.AIAnalysis{}, err
	}
	if err := p.store.SetAnalysis(id, analysis); err != nil {
		return types.AIAnalysis{}, err
	}
	return analysis, nil
}
