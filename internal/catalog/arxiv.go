// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog queries the arXiv API for paper metadata by category and
// submission date. Each client owns its own rate limiter, so independent
// clients have independent request budgets.
package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-assistant/internal/httputil"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivPDFBase resolves an arXiv ID to its PDF URL when the feed entry
// carries no pdf link.
var arxivPDFBase = "https://arxiv.org/pdf/"

// Client fetches paper metadata from arXiv. The zero value is not usable;
// construct with NewClient.
type Client struct {
	http    *http.Client
	cfg     types.CatalogConfig
	limiter *rate.Limiter
}

// NewClient builds a catalog client. Requests are spaced at least
// cfg.RequestDelay apart (default 3s); the first request is not delayed.
func NewClient(httpClient *http.Client, cfg types.CatalogConfig) *Client {
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// FetchByCategory returns metadata for papers submitted in category on day,
// newest first. A nil day means today. Transport and decode failures are
// returned to the caller; an empty result set is not an error.
func (c *Client) FetchByCategory(ctx context.Context, category string, day *time.Time) ([]types.PaperMetadata, error) {
	if category == "" {
		return nil, fmt.Errorf("category is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := time.Now().UTC()
	if day != nil {
		target = *day
	}
	dateStr := target.Format("20060102")

	query := fmt.Sprintf("cat:%s+AND+submittedDate:[%s+TO+%s]", category, dateStr, dateStr)
	url := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, query, c.cfg.MaxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var papers []types.PaperMetadata
	for _, entry := range feed.Entries {
		meta, ok := parseEntry(entry)
		if !ok {
			continue
		}
		papers = append(papers, meta)
	}
	return papers, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Updated         string          `xml:"updated"`
	Authors         []arxivAuthor   `xml:"author"`
	PrimaryCategory arxivCategory   `xml:"primary_category"`
	Categories      []arxivCategory `xml:"category"`
	Links           []arxivLink     `xml:"link"`
	Comment         string          `xml:"comment"`
	JournalRef      string          `xml:"journal_ref"`
	DOI             string          `xml:"doi"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// parseEntry normalizes one feed entry. Entries without a recognizable
// identifier are skipped.
func parseEntry(entry arxivEntry) (types.PaperMetadata, bool) {
	id := extractArxivID(entry.ID)
	if id == "" {
		return types.PaperMetadata{}, false
	}

	meta := types.PaperMetadata{
		ArxivID:         id,
		Title:           strings.TrimSpace(entry.Title),
		Abstract:        strings.TrimSpace(entry.Summary),
		PrimaryCategory: entry.PrimaryCategory.Term,
		Comment:         strings.TrimSpace(entry.Comment),
		JournalRef:      strings.TrimSpace(entry.JournalRef),
		DOI:             strings.TrimSpace(entry.DOI),
	}

	for _, a := range entry.Authors {
		meta.Authors = append(meta.Authors, types.Author{Name: strings.TrimSpace(a.Name)})
	}
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			meta.Categories = append(meta.Categories, cat.Term)
		}
	}

	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		meta.PublishedDate = t
	}
	if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil && entry.Updated != entry.Published {
		meta.UpdatedDate = &t
	}

	meta.PDFURL = pdfURL(entry, id)
	return meta, true
}

// pdfURL prefers the entry's pdf link and falls back to the canonical URL
// derived from the identifier.
func pdfURL(entry arxivEntry, id string) string {
	for _, l := range entry.Links {
		if l.Title == "pdf" && l.Href != "" {
			return l.Href
		}
	}
	return arxivPDFBase + id
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
