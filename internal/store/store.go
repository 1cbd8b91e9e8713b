// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store owns every Paper record: an in-memory map keyed by arXiv ID,
// persisted wholesale to a single JSON file after each mutation. All access
// is serialized behind one mutex so a read-modify-write-persist cycle is a
// single critical section, and the file is replaced with a temp-then-rename
// so a crash leaves either the old or the new contents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

// ErrNotFound reports that no paper with the requested identifier exists.
var ErrNotFound = errors.New("paper not found")

// Store is the single owner of all Paper records. Accessors return deep
// copies; mutations go through Store methods so each one persists.
type Store struct {
	mu     sync.Mutex
	path   string
	papers map[string]*types.Paper
	log    *zap.Logger
}

// Open loads the store from cfg.Path, creating an empty backing file when
// none exists. A file that cannot be parsed at all degrades to an empty
// store after logging; individual records that fail validation are dropped
// with a log line and the rest are kept.
func Open(cfg types.StoreConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		path:   cfg.Path,
		papers: make(map[string]*types.Paper),
		log:    log,
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("creating store file: %w", err)
		}
		return s, nil
	}

	s.loadLocked()
	return s, nil
}

// loadLocked reads the backing file into the in-memory map. Callers must
// hold the mutex (or have exclusive access during Open).
func (s *Store) loadLocked() {
	s.papers = make(map[string]*types.Paper)

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Error("reading store file, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Error("parsing store file, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}

	for id, rec := range raw {
		var p types.Paper
		if err := json.Unmarshal(rec, &p); err != nil {
			s.log.Warn("dropping malformed paper record", zap.String("arxiv_id", id), zap.Error(err))
			continue
		}
		if p.Metadata.ArxivID == "" || p.Metadata.ArxivID != id {
			s.log.Warn("dropping paper record with mismatched identifier",
				zap.String("key", id), zap.String("arxiv_id", p.Metadata.ArxivID))
			continue
		}
		s.papers[id] = &p
	}

	s.log.Info("loaded papers from store", zap.Int("count", len(s.papers)), zap.String("path", s.path))
}

// persistLocked serializes the whole collection and atomically replaces the
// backing file. Callers must hold the mutex.
func (s *Store) persistLocked() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.papers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".papers-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// Add inserts a new paper. It returns false without mutating anything when
// a paper with the same identifier already exists; there is no upsert.
func (s *Store) Add(p *types.Paper) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID()
	if id == "" {
		return false, fmt.Errorf("paper has no identifier")
	}
	if _, exists := s.papers[id]; exists {
		return false, nil
	}

	s.papers[id] = clonePaper(p)
	if err := s.persistLocked(); err != nil {
		delete(s.papers, id)
		return false, err
	}
	s.log.Info("added paper", zap.String("arxiv_id", id))
	return true, nil
}

// Get returns a copy of the paper, or ErrNotFound.
func (s *Store) Get(id string) (*types.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePaper(p), nil
}

// Delete removes a paper and persists. It returns false when absent.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.papers[id]
	if !ok {
		return false, nil
	}
	delete(s.papers, id)
	if err := s.persistLocked(); err != nil {
		s.papers[id] = p
		return false, err
	}
	s.log.Info("deleted paper", zap.String("arxiv_id", id))
	return true, nil
}

// Len returns the number of stored papers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.papers)
}

// Reload discards in-memory state and re-reads the backing file. Used to
// recover after out-of-band edits to the file.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
}

// All returns copies of every stored paper in no particular order.
func (s *Store) All() []*types.Paper {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		out = append(out, clonePaper(p))
	}
	return out
}

// mutate applies fn to the identified paper, stamps UpdatedAt, and
// persists. The in-memory record is restored when persistence fails.
func (s *Store) mutate(id string, fn func(*types.Paper)) (*types.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.papers[id]
	if !ok {
		return nil, ErrNotFound
	}

	prev := clonePaper(p)
	fn(p)
	now := time.Now().UTC()
	p.UpdatedAt = &now

	if err := s.persistLocked(); err != nil {
		s.papers[id] = prev
		return nil, err
	}
	return clonePaper(p), nil
}

// SetPDFPath records the local document path for a paper.
func (s *Store) SetPDFPath(id, path string) error {
	_, err := s.mutate(id, func(p *types.Paper) { p.PDFPath = path })
	return err
}

// SetExtractedText records extraction output for a paper.
func (s *Store) SetExtractedText(id, text string) error {
	_, err := s.mutate(id, func(p *types.Paper) { p.ExtractedText = text })
	return err
}

// SetAnalysis replaces the paper's analysis wholesale.
func (s *Store) SetAnalysis(id string, a types.AIAnalysis) error {
	_, err := s.mutate(id, func(p *types.Paper) { p.AIAnalysis = &a })
	return err
}

// SetProcessed flips the processed flag.
func (s *Store) SetProcessed(id string, processed bool) error {
	_, err := s.mutate(id, func(p *types.Paper) { p.Processed = processed })
	return err
}

// AppendChatMessage appends one message to the paper's chat history.
func (s *Store) AppendChatMessage(id string, msg types.ChatMessage) error {
	_, err := s.mutate(id, func(p *types.Paper) {
		p.ChatHistory = append(p.ChatHistory, msg)
	})
	return err
}

// ClearChatHistory resets the paper's chat history to empty.
func (s *Store) ClearChatHistory(id string) error {
	_, err := s.mutate(id, func(p *types.Paper) {
		p.ChatHistory = []types.ChatMessage{}
	})
	return err
}

// ChatHistory returns a copy of the paper's chat history, or ErrNotFound.
func (s *Store) ChatHistory(id string) ([]types.ChatMessage, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return p.ChatHistory, nil
}

// clonePaper deep-copies a paper so callers never share the store's
// internal record.
func clonePaper(p *types.Paper) *types.Paper {
	cp := *p

	cp.Metadata.Authors = append([]types.Author(nil), p.Metadata.Authors...)
	cp.Metadata.Categories = append([]string(nil), p.Metadata.Categories...)
	if p.Metadata.UpdatedDate != nil {
		d := *p.Metadata.UpdatedDate
		cp.Metadata.UpdatedDate = &d
	}

	if p.AIAnalysis != nil {
		a := *p.AIAnalysis
		a.KeyFindings = append([]string(nil), p.AIAnalysis.KeyFindings...)
		a.Strengths = append([]string(nil), p.AIAnalysis.Strengths...)
		a.Limitations = append([]string(nil), p.AIAnalysis.Limitations...)
		if p.AIAnalysis.RelevanceScore != nil {
			score := *p.AIAnalysis.RelevanceScore
			a.RelevanceScore = &score
		}
		cp.AIAnalysis = &a
	}

	cp.ChatHistory = append([]types.ChatMessage(nil), p.ChatHistory...)

	if p.UpdatedAt != nil {
		u := *p.UpdatedAt
		cp.UpdatedAt = &u
	}
	return &cp
}
