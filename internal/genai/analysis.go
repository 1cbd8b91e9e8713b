// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genai

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

// summaryFallbackLimit bounds the raw content stored as a summary when the
// structured response cannot be parsed.
const summaryFallbackLimit = 500

// analysisPayload mirrors the JSON shape requested by analyzeSystemPrompt.
type analysisPayload struct {
	Summary        string   `json:"summary"`
	KeyFindings    []string `json:"key_findings"`
	Methodology    string   `json:"methodology"`
	Strengths      []string `json:"strengths"`
	Limitations    []string `json:"limitations"`
	RelevanceScore *float64 `json:"relevance_score"`
}

// parseAnalysis decodes the model's structured output. Markdown code fences
// are stripped first. When the JSON cannot be parsed the raw content
// becomes the summary, so the caller always gets a usable analysis.
func parseAnalysis(content, scale string, log *zap.Logger) types.AIAnalysis {
	payload := stripCodeFence(content)

	var p analysisPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Warn("analysis response is not valid JSON, using raw content as summary", zap.Error(err))
		return types.AIAnalysis{
			Summary:     truncate(strings.TrimSpace(content), summaryFallbackLimit),
			KeyFindings: []string{},
			Strengths:   []string{},
			Limitations: []string{},
			GeneratedAt: time.Now().UTC(),
		}
	}

	a := types.AIAnalysis{
		Summary:        p.Summary,
		KeyFindings:    emptyIfNil(p.KeyFindings),
		Methodology:    p.Methodology,
		Strengths:      emptyIfNil(p.Strengths),
		Limitations:    emptyIfNil(p.Limitations),
		RelevanceScore: validateScore(p.RelevanceScore, scale, log),
		GeneratedAt:    time.Now().UTC(),
	}
	return a
}

// validateScore checks the relevance score against the configured scale
// ("0-100" by default, "0-1" accepted). Out-of-range scores are discarded.
func validateScore(score *float64, scale string, log *zap.Logger) *float64 {
	if score == nil {
		return nil
	}
	max := 100.0
	if scale == "0-1" {
		max = 1.0
	}
	if *score < 0 || *score > max {
		log.Warn("relevance score outside configured scale, discarding",
			zap.Float64("score", *score), zap.String("scale", scale))
		return nil
	}
	return score
}

// stripCodeFence unwraps content from ```json ... ``` or ``` ... ``` blocks.
func stripCodeFence(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(content)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
