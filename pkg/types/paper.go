// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-assistant
// lifecycle: catalog metadata, AI analysis, chat history, and the Paper
// aggregate persisted by the store.
package types

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Author is a single paper author as reported by the catalog.
type Author struct {
	// Name is the author's display name.
	Name string `json:"name" yaml:"name"`

	// CatalogID is the author's identifier at the catalog, when known.
	CatalogID string `json:"catalog_id,omitempty" yaml:"catalog_id,omitempty"`
}

// PaperMetadata is the catalog record for a paper. It is immutable once
// fetched: re-fetching the same identifier yields an equal record and must
// not create a second Paper.
type PaperMetadata struct {
	// ArxivID is the catalog-assigned identifier with any version suffix
	// stripped (e.g. "2301.07041"). It uniquely determines a Paper.
	ArxivID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []Author `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishedDate is the submission timestamp reported by the catalog.
	PublishedDate time.Time `json:"published_date" yaml:"published_date"`

	// UpdatedDate is the last revision timestamp, when present.
	UpdatedDate *time.Time `json:"updated_date,omitempty" yaml:"updated_date,omitempty"`

	// PDFURL is the document download URL.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// PrimaryCategory is the main subject classification (e.g. "cs.AI").
	PrimaryCategory string `json:"primary_category" yaml:"primary_category"`

	// Categories lists every subject classification on the record.
	Categories []string `json:"categories" yaml:"categories"`

	// Comment is the free-form submitter comment, when present.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`

	// JournalRef is the journal reference, when present.
	JournalRef string `json:"journal_ref,omitempty" yaml:"journal_ref,omitempty"`

	// DOI is the digital object identifier, when present.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// AIAnalysis is a generated structured analysis of a paper. It is attached
// to exactly one Paper and replaced wholesale on regeneration.
type AIAnalysis struct {
	// Summary is a short prose summary. Holds raw model output when the
	// structured response could not be parsed.
	Summary string `json:"summary" yaml:"summary"`

	// KeyFindings lists the main findings in model order.
	KeyFindings []string `json:"key_findings" yaml:"key_findings"`

	// Methodology describes the paper's approach, when provided.
	Methodology string `json:"methodology,omitempty" yaml:"methodology,omitempty"`

	// Strengths and Limitations are the model's assessment lists.
	Strengths   []string `json:"strengths" yaml:"strengths"`
	Limitations []string `json:"limitations" yaml:"limitations"`

	// RelevanceScore rates relevance on the configured scale (see
	// GenerationConfig.RelevanceScale). Nil when absent or out of range.
	RelevanceScore *float64 `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty"`

	// GeneratedAt is the generation timestamp.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// ChatMessage is one entry in a paper's chat history. Histories are ordered
// and append-only; messages are never edited in place.
type ChatMessage struct {
	// Role is "user" or "assistant".
	Role ChatRole `json:"role" yaml:"role"`

	// Content is the message text.
	Content string `json:"content" yaml:"content"`

	// Timestamp records when the message was appended.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Paper is the aggregate root owned by the store. Every mutation routes
// through the store so each write persists.
type Paper struct {
	// Metadata is the immutable catalog record. Metadata.ArxivID is the
	// store key.
	Metadata PaperMetadata `json:"metadata" yaml:"metadata"`

	// PDFPath is the local path of the downloaded document, empty until the
	// download stage succeeds.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// ExtractedText is the OCR/parse output, empty until extraction
	// succeeds. Re-processing may overwrite it.
	ExtractedText string `json:"extracted_text,omitempty" yaml:"extracted_text,omitempty"`

	// AIAnalysis is the latest generated analysis, nil until one exists.
	AIAnalysis *AIAnalysis `json:"ai_analysis,omitempty" yaml:"ai_analysis,omitempty"`

	// ChatHistory is the ordered conversation about this paper.
	ChatHistory []ChatMessage `json:"chat_history" yaml:"chat_history"`

	// Processed reports that at least one extraction+analysis pass ran.
	Processed bool `json:"processed" yaml:"processed"`

	// CreatedAt is set when the Paper enters the store; UpdatedAt is
	// stamped on every store mutation.
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ID returns the store key for the paper.
func (p *Paper) ID() string {
	return p.Metadata.ArxivID
}

// NewPaper wraps catalog metadata into a fresh, unprocessed Paper.
func NewPaper(meta PaperMetadata) *Paper {
	return &Paper{
		Metadata:    meta,
		ChatHistory: []ChatMessage{},
		CreatedAt:   time.Now().UTC(),
	}
}
