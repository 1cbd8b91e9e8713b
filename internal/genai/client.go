// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package genai wraps the OpenRouter chat-completions API for the three
// generation operations: short abstract explanation, structured paper
// analysis, and streaming contextual chat.
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/internal/httputil"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

// openRouterAPIBase is the OpenRouter endpoint. Declared as a var so tests
// can substitute an httptest server.
var openRouterAPIBase = "https://openrouter.ai/api/v1"

const (
	// analyzeTextBudget bounds the full-text excerpt sent with an
	// analysis request.
	analyzeTextBudget = 15000

	// chatTextBudget bounds the paper text embedded in the chat system
	// prompt.
	chatTextBudget = 50000

	// chatHistoryWindow is the number of trailing history messages sent
	// with a chat request.
	chatHistoryWindow = 10
)

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the OpenRouter API.
type Client struct {
	http *http.Client
	cfg  types.GenerationConfig
	log  *zap.Logger
}

// NewClient builds a generation client.
func NewClient(httpClient *http.Client, cfg types.GenerationConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{http: httpClient, cfg: cfg, log: log}
}

// Chat-completions request/response structures.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// newRequest prepares an authenticated chat-completions request.
func (c *Client) newRequest(ctx context.Context, body completionRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		openRouterAPIBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return req, nil
}

// complete performs a non-streaming completion and returns the first
// choice's content.
func (c *Client) complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req, err := c.newRequest(ctx, completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return "", fmt.Errorf("generation API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation API returned %d: %s", resp.StatusCode, string(body))
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding generation response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("generation API returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// ExplainAbstract returns a short explanation of the abstract. An empty
// abstract returns an empty string without a network call.
func (c *Client) ExplainAbstract(ctx context.Context, abstract string) (string, error) {
	if abstract == "" {
		return "", nil
	}
	return c.complete(ctx, []Message{
		{Role: "system", Content: explainSystemPrompt},
		{Role: "user", Content: abstract},
	}, 200)
}

// AnalyzePaper generates a structured analysis from title, abstract, and
// optional full text. Malformed structured output degrades to an analysis
// whose summary holds the raw content; see parseAnalysis.
func (c *Client) AnalyzePaper(ctx context.Context, title, abstract, fullText string) (types.AIAnalysis, error) {
	user := fmt.Sprintf("Title: %s\n\nAbstract: %s", title, abstract)
	if fullText != "" {
		user = fmt.Sprintf("%s\n\nFull Text (excerpt):\n%s", user, truncate(fullText, analyzeTextBudget))
	}

	content, err := c.complete(ctx, []Message{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: user},
	}, 1000)
	if err != nil {
		return types.AIAnalysis{}, err
	}

	return parseAnalysis(content, c.cfg.RelevanceScale, c.log), nil
}

// ChatStream streams a contextual chat completion. The system context is
// the paper text (truncated) plus the supplied history, oldest first. Each
// text fragment is passed to onDelta as it arrives; the accumulated reply
// is returned once the stream ends. Cancelling ctx aborts the upstream
// request, so a consumer that stops reading stops the generation.
func (c *Client) ChatStream(ctx context.Context, paperText string, history []Message, model string, onDelta func(string)) (string, error) {
	system, err := renderChatSystem(truncate(paperText, chatTextBudget))
	if err != nil {
		return "", fmt.Errorf("rendering chat prompt: %w", err)
	}

	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}
	messages := append([]Message{{Role: "system", Content: system}}, history...)

	if model == "" {
		model = c.cfg.Model
	}

	req, err := c.newRequest(ctx, completionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   4000,
		Stream:      true,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation API returned %d: %s", resp.StatusCode, string(body))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			if data == "[DONE]" {
				break
			}
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.log.Warn("skipping malformed stream chunk", zap.Error(err))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("reading stream: %w", err)
	}

	return full.String(), nil
}

// truncate clips s to at most max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
