// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genai

import (
	"bytes"
	"text/template"
)

// explainSystemPrompt instructs the model for short abstract explanations.
const explainSystemPrompt = "You are a research assistant. Explain this academic abstract " +
	"clearly and concisely for a researcher. Focus on the key " +
	"contribution and methodology. Keep it brief (2-3 sentences)."

// analyzeSystemPrompt instructs the model to return a structured analysis
// as JSON. The relevance score is requested on the 0-100 scale; the parser
// validates against the configured scale.
const analyzeSystemPrompt = "You are a research assistant analyzing an academic paper. " +
	"Provide a structured analysis with: 1. A concise summary (2-3 sentences) " +
	"2. Key findings (bullet points) 3. Methodology overview 4. Strengths " +
	"5. Limitations 6. Relevance score (0-100) for ML/AI research. " +
	"Return as JSON with keys: summary, key_findings (list), methodology, " +
	"strengths (list), limitations (list), relevance_score."

// chatSystemTmpl builds the grounding prompt for contextual chat. The paper
// text is truncated to chatTextBudget characters before rendering.
var chatSystemTmpl = template.Must(template.New("chat").Parse(
	`You are a research assistant helping a user understand an academic paper. ` +
		`You must answer based ONLY on the provided paper content. ` +
		`If the answer cannot be found in the paper, say so clearly. ` +
		"Paper content:\n{{.PaperText}}\n\nCurrent conversation:"))

// renderChatSystem executes the chat prompt template.
func renderChatSystem(paperText string) (string, error) {
	var buf bytes.Buffer
	err := chatSystemTmpl.Execute(&buf, struct{ PaperText string }{PaperText: paperText})
	return buf.String(), err
}
