// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import "github.com/pdiddy/paper-assistant/pkg/types"

// PaperUpdate names every mutable Paper field. Nil fields are left
// untouched. Using a struct instead of a key/value map keeps unknown field
// names unrepresentable, so a typo is a compile error rather than a
// silently ignored update.
type PaperUpdate struct {
	PDFPath       *string
	ExtractedText *string
	AIAnalysis    *types.AIAnalysis
	Processed     *bool
}

// Update applies the set fields to the identified paper, stamps UpdatedAt,
// and persists. It returns the updated paper, or ErrNotFound.
func (s *Store) Update(id string, u PaperUpdate) (*types.Paper, error) {
	return s.mutate(id, func(p *types.Paper) {
		if u.PDFPath != nil {
			p.PDFPath = *u.PDFPath
		}
		if u.ExtractedText != nil {
			p.ExtractedText = *u.ExtractedText
		}
		if u.AIAnalysis != nil {
			a := *u.AIAnalysis
			p.AIAnalysis = &a
		}
		if u.Processed != nil {
			p.Processed = *u.Processed
		}
	})
}
