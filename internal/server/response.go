// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/paper-assistant/internal/pipeline"
	"github.com/pdiddy/paper-assistant/internal/store"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Stable error codes exposed to clients. Each maps a distinct failure
// class so callers can react without parsing messages.
const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeNotExtracted   = "not_extracted"
	codeUpstream       = "upstream_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fail writes a structured error response.
func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// failErr maps known sentinel errors to their status and code; anything
// else is treated as an upstream failure.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, codeNotFound, "Paper not found")
	case errors.Is(err, pipeline.ErrNotExtracted):
		fail(c, http.StatusConflict, codeNotExtracted, "Paper text not extracted. Please process the paper first.")
	case errors.Is(err, pipeline.ErrNoPDF):
		fail(c, http.StatusConflict, codeNotExtracted, "Paper document not downloaded")
	default:
		fail(c, http.StatusBadGateway, codeUpstream, err.Error())
	}
}

// paperResponse is the list/summary view of a paper.
type paperResponse struct {
	ArxivID       string    `json:"arxiv_id"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	Abstract      string    `json:"abstract"`
	PublishedDate time.Time `json:"published_date"`
	Category      string    `json:"category"`
	AISummary     *string   `json:"ai_summary,omitempty"`
	Processed     bool      `json:"processed"`
}

func toPaperResponse(p *types.Paper) paperResponse {
	authors := make([]string, 0, len(p.Metadata.Authors))
	for _, a := range p.Metadata.Authors {
		authors = append(authors, a.Name)
	}

	resp := paperResponse{
		ArxivID:       p.Metadata.ArxivID,
		Title:         p.Metadata.Title,
		Authors:       authors,
		Abstract:      p.Metadata.Abstract,
		PublishedDate: p.Metadata.PublishedDate,
		Category:      p.Metadata.PrimaryCategory,
		Processed:     p.Processed,
	}
	if p.AIAnalysis != nil {
		summary := p.AIAnalysis.Summary
		resp.AISummary = &summary
	}
	return resp
}

// paperDetailResponse is the full view of a paper.
type paperDetailResponse struct {
	Metadata      types.PaperMetadata `json:"metadata"`
	PDFPath       string              `json:"pdf_path,omitempty"`
	ExtractedText string              `json:"extracted_text,omitempty"`
	AIAnalysis    *types.AIAnalysis   `json:"ai_analysis,omitempty"`
	ChatHistory   []types.ChatMessage `json:"chat_history"`
	Processed     bool                `json:"processed"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     *time.Time          `json:"updated_at,omitempty"`
}

func toPaperDetail(p *types.Paper) paperDetailResponse {
	history := p.ChatHistory
	if history == nil {
		history = []types.ChatMessage{}
	}
	return paperDetailResponse{
		Metadata:      p.Metadata,
		PDFPath:       p.PDFPath,
		ExtractedText: p.ExtractedText,
		AIAnalysis:    p.AIAnalysis,
		ChatHistory:   history,
		Processed:     p.Processed,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// category is one entry of the static category catalog.
type category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// categoryCatalog lists the arXiv categories the UI offers for fetching.
var categoryCatalog = []category{
	{ID: "cs.AI", Name: "Artificial Intelligence"},
	{ID: "cs.CL", Name: "Computation and Language"},
	{ID: "cs.CV", Name: "Computer Vision"},
	{ID: "cs.LG", Name: "Machine Learning"},
	{ID: "cs.NE", Name: "Neural and Evolutionary Computing"},
	{ID: "cs.RO", Name: "Robotics"},
	{ID: "cs.SE", Name: "Software Engineering"},
	{ID: "cs.CR", Name: "Cryptography and Security"},
	{ID: "cs.DB", Name: "Databases"},
	{ID: "cs.DC", Name: "Distributed Computing"},
	{ID: "cs.HC", Name: "Human-Computer Interaction"},
	{ID: "cs.IR", Name: "Information Retrieval"},
	{ID: "stat.ML", Name: "Statistics - Machine Learning"},
}
