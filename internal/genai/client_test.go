// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

func testGenConfig() types.GenerationConfig {
	return types.GenerationConfig{
		APIKey:  "sk_test",
		Model:   "test/model",
		Timeout: 10 * time.Second,
	}
}

// completionServer returns a server answering chat-completions with content.
func completionServer(t *testing.T, content string, check func(completionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("Authorization = %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if check != nil {
			check(req)
		}
		fmt.Fprintf(w, `{"choices": [{"message": {"content": %q}}]}`, content)
	}))
}

func withAPIBase(t *testing.T, url string) {
	t.Helper()
	old := openRouterAPIBase
	openRouterAPIBase = url
	t.Cleanup(func() { openRouterAPIBase = old })
}

func TestExplainAbstract(t *testing.T) {
	ts := completionServer(t, "It is about attention.", func(req completionRequest) {
		if req.MaxTokens != 200 {
			t.Errorf("MaxTokens = %d, want 200", req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %v", req.Messages)
		}
		if req.Messages[1].Content != "the abstract" {
			t.Errorf("user content = %q", req.Messages[1].Content)
		}
		if req.Stream {
			t.Error("explain request must not stream")
		}
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	got, err := c.ExplainAbstract(context.Background(), "the abstract")
	if err != nil {
		t.Fatalf("ExplainAbstract() error = %v", err)
	}
	if got != "It is about attention." {
		t.Errorf("ExplainAbstract() = %q", got)
	}
}

func TestExplainAbstractEmptySkipsCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	got, err := c.ExplainAbstract(context.Background(), "")
	if err != nil {
		t.Fatalf("ExplainAbstract(\"\") error = %v", err)
	}
	if got != "" || called {
		t.Errorf("got %q, called=%t; empty abstract must not call the API", got, called)
	}
}

func TestAnalyzePaper(t *testing.T) {
	analysis := `{"summary": "Structured.", "key_findings": ["a"], "relevance_score": 90}`
	ts := completionServer(t, analysis, func(req completionRequest) {
		if req.MaxTokens != 1000 {
			t.Errorf("MaxTokens = %d, want 1000", req.MaxTokens)
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "Title: T") || !strings.Contains(user, "Abstract: A") {
			t.Errorf("user content = %q", user)
		}
		if !strings.Contains(user, "Full Text (excerpt):") {
			t.Errorf("user content missing full text section: %q", user)
		}
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	got, err := c.AnalyzePaper(context.Background(), "T", "A", "full text")
	if err != nil {
		t.Fatalf("AnalyzePaper() error = %v", err)
	}
	if got.Summary != "Structured." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.RelevanceScore == nil || *got.RelevanceScore != 90 {
		t.Errorf("RelevanceScore = %v", got.RelevanceScore)
	}
}

func TestAnalyzePaperTruncatesFullText(t *testing.T) {
	var gotLen int
	ts := completionServer(t, `{"summary": "s"}`, func(req completionRequest) {
		gotLen = len(req.Messages[1].Content)
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	long := strings.Repeat("x", analyzeTextBudget*2)
	if _, err := c.AnalyzePaper(context.Background(), "T", "A", long); err != nil {
		t.Fatalf("AnalyzePaper() error = %v", err)
	}
	// Title/abstract framing plus at most the budget.
	if gotLen > analyzeTextBudget+200 {
		t.Errorf("user content length = %d, full text not truncated", gotLen)
	}
}

func TestAnalyzePaperUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	if _, err := c.AnalyzePaper(context.Background(), "T", "A", ""); err == nil {
		t.Error("AnalyzePaper() succeeded on 502, want error")
	}
}

// streamServer answers with an SSE stream of the given deltas.
func streamServer(t *testing.T, deltas []string, check func(completionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if check != nil {
			check(req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\": [{\"delta\": {\"content\": %q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestChatStream(t *testing.T) {
	ts := streamServer(t, []string{"Hel", "lo ", "there"}, func(req completionRequest) {
		if !req.Stream {
			t.Error("chat request must stream")
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first message role = %q", req.Messages[0].Role)
		}
		if !strings.Contains(req.Messages[0].Content, "paper body text") {
			t.Error("system prompt missing paper text")
		}
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	var deltas []string
	full, err := c.ChatStream(context.Background(), "paper body text",
		[]Message{{Role: "user", Content: "hi"}}, "", func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if full != "Hello there" {
		t.Errorf("accumulated reply = %q", full)
	}
	if len(deltas) != 3 {
		t.Errorf("got %d deltas, want 3", len(deltas))
	}
}

func TestChatStreamHistoryWindow(t *testing.T) {
	var gotMessages int
	ts := streamServer(t, []string{"ok"}, func(req completionRequest) {
		gotMessages = len(req.Messages)
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	history := make([]Message, 25)
	for i := range history {
		history[i] = Message{Role: "user", Content: fmt.Sprintf("m%d", i)}
	}

	c := NewClient(ts.Client(), testGenConfig(), nil)
	if _, err := c.ChatStream(context.Background(), "text", history, "", nil); err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	// System prompt plus the trailing window.
	if gotMessages != chatHistoryWindow+1 {
		t.Errorf("sent %d messages, want %d", gotMessages, chatHistoryWindow+1)
	}
}

func TestChatStreamSkipsMalformedChunks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"choices\": [{\"delta\": {\"content\": \"kept\"}}]}\n\n")
		fmt.Fprint(w, ": comment line ignored\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	full, err := c.ChatStream(context.Background(), "text", nil, "", nil)
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if full != "kept" {
		t.Errorf("accumulated reply = %q, want malformed chunk skipped", full)
	}
}

func TestChatStreamModelOverride(t *testing.T) {
	var gotModel string
	ts := streamServer(t, []string{"ok"}, func(req completionRequest) {
		gotModel = req.Model
	})
	defer ts.Close()
	withAPIBase(t, ts.URL)

	c := NewClient(ts.Client(), testGenConfig(), nil)
	if _, err := c.ChatStream(context.Background(), "text", nil, "other/model", nil); err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if gotModel != "other/model" {
		t.Errorf("model = %q, want override", gotModel)
	}
}
