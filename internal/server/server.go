// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the paper lifecycle over HTTP: list/filter,
// fetch-from-catalog, process, explain, raw document bytes, full-text
// search, and streaming chat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/index"
	"github.com/pdiddy/paper-assistant/internal/pipeline"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Server wires the pipeline and search index behind a gin router.
type Server struct {
	pipe   *pipeline.Pipeline
	idx    *index.Index
	cfg    types.ServerConfig
	log    *zap.Logger
	engine *gin.Engine
}

// New builds the HTTP server. idx may be nil when the search index is
// disabled; the search endpoint then reports unavailability.
func New(pipe *pipeline.Pipeline, idx *index.Index, cfg types.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{pipe: pipe, idx: idx, cfg: cfg, log: log}
	s.engine = s.buildRouter()
	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		papers := api.Group("/papers")
		{
			papers.GET("", s.listPapers)
			papers.GET("/categories", s.getCategories)
			papers.GET("/search", s.searchPapers)
			papers.POST("/fetch", s.fetchPapers)
			papers.GET("/:id", s.getPaper)
			papers.GET("/:id/pdf", s.getPaperPDF)
			papers.POST("/:id/process", s.processPaper)
			papers.GET("/:id/explain", s.explainPaper)
		}

		chat := api.Group("/chat")
		{
			chat.POST("/:id", s.chatWithPaper)
			chat.GET("/:id/history", s.getChatHistory)
			chat.DELETE("/:id", s.clearChatHistory)
			chat.POST("/:id/generate-summary", s.generateSummary)
		}
	}

	return router
}

// requestLogger tags every request with an ID and logs method, path,
// status, and duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		c.Header("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		s.log.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"papers": s.pipe.Store().Len(),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
