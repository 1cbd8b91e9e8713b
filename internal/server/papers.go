// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/paper-assistant/internal/index"
	"github.com/pdiddy/paper-assistant/internal/pipeline"
	"github.com/pdiddy/paper-assistant/internal/store"
)

// listPapers handles GET /api/papers with the composable store filters.
func (s *Server) listPapers(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			fail(c, http.StatusBadRequest, codeInvalidRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, codeInvalidRequest, "offset must be non-negative")
			return
		}
		offset = n
	}

	filter := store.Filter{
		Category: c.Query("category"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Search:   c.Query("search"),
	}
	if v := c.Query("processed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(c, http.StatusBadRequest, codeInvalidRequest, "processed must be true or false")
			return
		}
		filter.Processed = &b
	}

	papers, err := s.pipe.Store().List(filter, limit, offset)
	if err != nil {
		fail(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	out := make([]paperResponse, 0, len(papers))
	for _, p := range papers {
		out = append(out, toPaperResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getCategories(c *gin.Context) {
	c.JSON(http.StatusOK, categoryCatalog)
}

type fetchRequest struct {
	Category string `json:"category" binding:"required"`
	Date     string `json:"date"`
}

type fetchResponse struct {
	Category         string          `json:"category"`
	Date             string          `json:"date"`
	PapersFound      int             `json:"papers_found"`
	PapersDownloaded int             `json:"papers_downloaded"`
	Papers           []paperResponse `json:"papers"`
}

// fetchPapers handles POST /api/papers/fetch: catalog query, best-effort
// document downloads, and store inserts.
func (s *Server) fetchPapers(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeInvalidRequest, "category is required")
		return
	}

	var day *time.Time
	if req.Date != "" {
		t, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			fail(c, http.StatusBadRequest, codeInvalidRequest, "Invalid date format. Use YYYY-MM-DD")
			return
		}
		day = &t
	}

	result, err := s.pipe.FetchCategory(c.Request.Context(), req.Category, day, io.Discard)
	if err != nil {
		fail(c, http.StatusBadGateway, codeUpstream, fmt.Sprintf("Failed to fetch from catalog: %v", err))
		return
	}

	papers := make([]paperResponse, 0, len(result.Papers))
	for _, p := range result.Papers {
		papers = append(papers, toPaperResponse(p))
	}

	c.JSON(http.StatusOK, fetchResponse{
		Category:         result.Category,
		Date:             result.Date,
		PapersFound:      result.Found,
		PapersDownloaded: result.Downloaded,
		Papers:           papers,
	})
}

func (s *Server) getPaper(c *gin.Context) {
	paper, err := s.pipe.Store().Get(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaperDetail(paper))
}

// getPaperPDF serves the raw document bytes.
func (s *Server) getPaperPDF(c *gin.Context) {
	id := c.Param("id")
	paper, err := s.pipe.Store().Get(id)
	if err != nil {
		failErr(c, err)
		return
	}
	if paper.PDFPath == "" {
		fail(c, http.StatusNotFound, codeNotFound, "PDF file not found")
		return
	}
	if _, err := os.Stat(paper.PDFPath); err != nil {
		fail(c, http.StatusNotFound, codeNotFound, "PDF file not found")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", id+".pdf"))
	c.Header("Content-Type", "application/pdf")
	c.File(paper.PDFPath)
}

type processRequest struct {
	SkipOCR bool `json:"skip_ocr"`
}

type processResponse struct {
	ArxivID             string `json:"arxiv_id"`
	OCRSuccess          bool   `json:"ocr_success"`
	TextExtracted       bool   `json:"text_extracted"`
	AIAnalysisGenerated bool   `json:"ai_analysis_generated"`
	Message             string `json:"message"`
}

// processPaper handles POST /api/papers/:id/process: extraction plus
// analysis with partial-success reporting.
func (s *Server) processPaper(c *gin.Context) {
	var req processRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
	}

	result, err := s.pipe.ProcessPaper(c.Request.Context(), c.Param("id"), pipeline.ProcessOptions{SkipOCR: req.SkipOCR})
	if err != nil {
		failErr(c, err)
		return
	}

	c.JSON(http.StatusOK, processResponse{
		ArxivID:             result.ArxivID,
		OCRSuccess:          result.OCRSuccess,
		TextExtracted:       result.TextExtracted,
		AIAnalysisGenerated: result.AnalysisGenerated,
		Message:             result.Message(),
	})
}

// explainPaper handles GET /api/papers/:id/explain.
func (s *Server) explainPaper(c *gin.Context) {
	paper, err := s.pipe.Store().Get(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}

	explanation, err := s.pipe.GenAI().ExplainAbstract(c.Request.Context(), paper.Metadata.Abstract)
	if err != nil {
		fail(c, http.StatusBadGateway, codeUpstream, fmt.Sprintf("Failed to generate explanation: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

// searchPapers handles GET /api/papers/search over the FTS index.
func (s *Server) searchPapers(c *gin.Context) {
	if s.idx == nil {
		fail(c, http.StatusServiceUnavailable, codeUpstream, "search index not configured")
		return
	}
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, codeInvalidRequest, "q is required")
		return
	}

	// Bring the index up to date before querying; it is derived state.
	if _, err := s.idx.Sync(c.Request.Context(), s.pipe.Store()); err != nil {
		fail(c, http.StatusInternalServerError, codeUpstream, err.Error())
		return
	}

	hits, err := s.idx.Search(c.Request.Context(), query, 0)
	if err != nil {
		if errors.Is(err, c.Request.Context().Err()) {
			return
		}
		fail(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	c.JSON(http.StatusOK, hits)
}
