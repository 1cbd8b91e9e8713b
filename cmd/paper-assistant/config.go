// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/catalog"
	"github.com/pdiddy/paper-assistant/internal/docfetch"
	"github.com/pdiddy/paper-assistant/internal/genai"
	"github.com/pdiddy/paper-assistant/internal/index"
	"github.com/pdiddy/paper-assistant/internal/pipeline"
	"github.com/pdiddy/paper-assistant/internal/store"
	"github.com/pdiddy/paper-assistant/internal/textextract"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

const userAgent = "paper-assistant/0.1"

// loadConfig unmarshals viper state into the typed configuration and
// fills in defaults and secrets.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 60 * time.Second
	}
	if cfg.Catalog.UserAgent == "" {
		cfg.Catalog.UserAgent = userAgent
	}
	if cfg.Download.Timeout == 0 {
		cfg.Download.Timeout = 120 * time.Second
	}
	if cfg.Download.UserAgent == "" {
		cfg.Download.UserAgent = userAgent
	}
	if cfg.Download.PapersDir == "" {
		cfg.Download.PapersDir = "papers"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/papers.json"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "data/index"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Scheduler.FetchTime == "" {
		cfg.Scheduler.FetchTime = "08:00"
	}
	if len(cfg.Scheduler.Categories) == 0 {
		cfg.Scheduler.Categories = []string{"cs.AI", "cs.LG", "cs.CL"}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	cfg.Generation.APIKey = secretDefault("openrouter-api-key", cfg.Generation.APIKey)
	cfg.Extraction.OCRToken = secretDefault("ocr-token", cfg.Extraction.OCRToken)

	return cfg, nil
}

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg  types.Config
	st   *store.Store
	pipe *pipeline.Pipeline
	log  *zap.Logger
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildApp opens the store and wires the pipeline from configuration.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Server.Debug)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	cat := catalog.NewClient(&http.Client{Timeout: cfg.Catalog.Timeout}, cfg.Catalog)
	fetcher := docfetch.NewFetcher(&http.Client{Timeout: cfg.Download.Timeout}, cfg.Download, log)
	extractor := textextract.NewExtractor(nil, cfg.Extraction, log)
	gen := genai.NewClient(nil, cfg.Generation, log)

	return &app{
		cfg:  cfg,
		st:   st,
		pipe: pipeline.New(cat, fetcher, extractor, gen, st, log),
		log:  log,
	}, nil
}

// openIndex opens the search index configured for the app.
func (a *app) openIndex() (*index.Index, error) {
	return index.Open(a.cfg.Index)
}
