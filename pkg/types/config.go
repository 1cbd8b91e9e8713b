// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// CatalogConfig holds settings for the arXiv catalog client.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// RequestDelay is the minimum interval between catalog requests
	// (default 3s). The client blocks until the interval has elapsed.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`

	// MaxResults is the maximum number of records per query (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// DownloadConfig holds settings for the document fetcher.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir is the base directory for downloaded documents, laid out as
	// PapersDir/<category>/<YYYY-MM-DD>/<id>.pdf.
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`
}

// ExtractionConfig holds settings for the text extraction stage.
type ExtractionConfig struct {
	// OCRURL is the OCR HTTP API endpoint used as the primary method.
	OCRURL string `json:"ocr_url" yaml:"ocr_url" mapstructure:"ocr_url"`

	// OCRToken is the OCR API access token. When empty the primary method
	// is skipped and extraction goes straight to the local fallback.
	OCRToken string `json:"ocr_token,omitempty" yaml:"ocr_token,omitempty" mapstructure:"ocr_token"`

	// Timeout bounds a single OCR API call (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// GenerationConfig holds settings for the text-generation client.
type GenerationConfig struct {
	// APIKey authenticates against the OpenRouter API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model is the default model identifier (e.g. "anthropic/claude-3.5-sonnet").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Timeout bounds a single generation call (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RelevanceScale names the range the analysis relevance score is
	// validated against: "0-100" (default) or "0-1". The upstream prompt
	// asks for 0-100; scores outside the configured range are discarded.
	RelevanceScale string `json:"relevance_scale" yaml:"relevance_scale" mapstructure:"relevance_scale"`
}

// StoreConfig holds settings for the paper store.
type StoreConfig struct {
	// Path is the JSON file backing the store (default "data/papers.json").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// IndexConfig holds settings for the full-text search index.
type IndexConfig struct {
	// Dir is the directory containing the SQLite index database.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of search hits (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// SchedulerConfig holds settings for the daily fetch job.
type SchedulerConfig struct {
	// Enabled turns the scheduler on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// FetchTime is the daily run time in "HH:MM" (default "08:00").
	FetchTime string `json:"fetch_time" yaml:"fetch_time" mapstructure:"fetch_time"`

	// Categories lists the catalog categories fetched by the job.
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Host and Port select the listen address (default 0.0.0.0:8000).
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// AllowOrigins lists CORS origins permitted to call the API.
	AllowOrigins []string `json:"allow_origins" yaml:"allow_origins" mapstructure:"allow_origins"`

	// Debug switches gin into debug mode.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
}

// Config groups all component configurations.
type Config struct {
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Download   DownloadConfig   `json:"download" yaml:"download" mapstructure:"download"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Index      IndexConfig      `json:"index" yaml:"index" mapstructure:"index"`
	Scheduler  SchedulerConfig  `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
}
