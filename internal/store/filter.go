// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

// Filter selects papers for List and Count. All set fields must match
// (logical AND). Date bounds are ISO dates ("2006-01-02") and inclusive:
// DateTo covers the whole named day.
type Filter struct {
	// Category matches the primary category exactly.
	Category string

	// DateFrom and DateTo bound the published date, inclusive.
	DateFrom string
	DateTo   string

	// Processed matches the processed flag when non-nil.
	Processed *bool

	// Search is a case-insensitive substring matched against the title OR
	// the abstract.
	Search string
}

// compile parses the filter's date bounds and returns a predicate.
func (f Filter) compile() (func(*types.Paper) bool, error) {
	var from, to time.Time
	if f.DateFrom != "" {
		t, err := time.Parse("2006-01-02", f.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from %q: %w", f.DateFrom, err)
		}
		from = t
	}
	if f.DateTo != "" {
		t, err := time.Parse("2006-01-02", f.DateTo)
		if err != nil {
			return nil, fmt.Errorf("invalid date_to %q: %w", f.DateTo, err)
		}
		// Inclusive upper bound: anything before the next midnight.
		to = t.AddDate(0, 0, 1)
	}

	search := strings.ToLower(f.Search)

	return func(p *types.Paper) bool {
		if f.Category != "" && p.Metadata.PrimaryCategory != f.Category {
			return false
		}
		if !from.IsZero() && p.Metadata.PublishedDate.Before(from) {
			return false
		}
		if !to.IsZero() && !p.Metadata.PublishedDate.Before(to) {
			return false
		}
		if f.Processed != nil && p.Processed != *f.Processed {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Metadata.Title), search) &&
			!strings.Contains(strings.ToLower(p.Metadata.Abstract), search) {
			return false
		}
		return true
	}, nil
}

// List returns papers matching the filter, sorted by published date
// descending, with limit/offset applied after filtering and sorting.
// A non-positive limit means no limit.
func (s *Store) List(f Filter, limit, offset int) ([]*types.Paper, error) {
	match, err := f.compile()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var out []*types.Paper
	for _, p := range s.papers {
		if match(p) {
			out = append(out, clonePaper(p))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.PublishedDate.After(out[j].Metadata.PublishedDate)
	})

	if offset > 0 {
		if offset >= len(out) {
			return []*types.Paper{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of papers matching the filter. Same semantics as
// List without sorting or pagination.
func (s *Store) Count(f Filter) (int, error) {
	match, err := f.compile()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.papers {
		if match(p) {
			n++
		}
	}
	return n, nil
}
