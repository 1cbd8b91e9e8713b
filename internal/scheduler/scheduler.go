// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs the daily ingest job: fetch the configured
// categories, process whatever is new, and resync the search index.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/index"
	"github.com/pdiddy/paper-assistant/internal/pipeline"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Scheduler owns the cron runner for the daily ingest.
type Scheduler struct {
	cron *cron.Cron
	pipe *pipeline.Pipeline
	idx  *index.Index
	cfg  types.SchedulerConfig
	log  *zap.Logger
}

// New builds a scheduler. idx may be nil when the search index is
// disabled; the job then skips the sync step.
func New(pipe *pipeline.Pipeline, idx *index.Index, cfg types.SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(),
		pipe: pipe,
		idx:  idx,
		cfg:  cfg,
		log:  log,
	}
}

// cronSpec converts a daily "HH:MM" time into a cron expression.
func cronSpec(fetchTime string) (string, error) {
	parts := strings.Split(fetchTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("fetch time %q is not HH:MM", fetchTime)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("fetch time %q has invalid hour", fetchTime)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("fetch time %q has invalid minute", fetchTime)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start registers the daily job and starts the cron runner. It is a
// no-op when the scheduler is disabled.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}

	spec, err := cronSpec(s.cfg.FetchTime)
	if err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(spec, s.runDaily); err != nil {
		return fmt.Errorf("registering daily job: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("fetch_time", s.cfg.FetchTime),
		zap.Strings("categories", s.cfg.Categories),
	)
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runDaily is the job body. Per-category and per-paper failures are
// already isolated inside the pipeline; the job logs tallies and never
// panics the runner.
func (s *Scheduler) runDaily() {
	ctx := context.Background()
	s.log.Info("daily ingest starting", zap.Strings("categories", s.cfg.Categories))

	fetched := s.pipe.FetchAll(ctx, s.cfg.Categories, nil, io.Discard)
	for cat, res := range fetched.Categories {
		s.log.Info("category fetched",
			zap.String("category", cat),
			zap.Int("found", res.Found),
			zap.Int("downloaded", res.Downloaded),
			zap.Int("saved", res.Saved),
		)
	}
	for cat, msg := range fetched.Errors {
		s.log.Error("category fetch failed", zap.String("category", cat), zap.String("error", msg))
	}

	batch, err := s.pipe.ProcessAll(ctx, io.Discard)
	if err != nil {
		s.log.Error("batch processing failed", zap.Error(err))
	} else {
		s.log.Info("batch processing finished",
			zap.Int("processed", batch.Processed),
			zap.Int("failed", batch.Failed),
			zap.Int("skipped", batch.Skipped),
		)
	}

	if s.idx != nil {
		summary, err := s.idx.Sync(ctx, s.pipe.Store())
		if err != nil {
			s.log.Error("index sync failed", zap.Error(err))
		} else {
			s.log.Info("index synced",
				zap.Int("indexed", summary.Indexed),
				zap.Int("updated", summary.Updated),
				zap.Int("removed", summary.Removed),
			)
		}
	}

	s.log.Info("daily ingest finished")
}
