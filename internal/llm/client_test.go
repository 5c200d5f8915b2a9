package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ragchat/backend/pkg/circuitbreaker"
	"github.com/ragchat/backend/pkg/retry"
)

// testClient points a Client at a stub completion endpoint so failure
// shapes the real API can produce are exercised without the network.
func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL

	return &Client{
		client:         openai.NewClientWithConfig(cfg),
		model:          "gpt-4o-mini",
		embeddingModel: "text-embedding-3-small",
		temperature:    0.7,
		maxTokens:      1000,
		cb:             circuitbreaker.New("llm-test", circuitbreaker.Config{}),
		retryConfig: retry.Config{
			MaxAttempts:  1,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1.0,
		},
	}
}

func TestComplete_EmptyChoicesReturnsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":0,"total_tokens":12}}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are concise.",
		UserPrompt:   "hello",
	})
	if err == nil {
		t.Fatalf("expected an error for a reply with no choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected a no-choices error, got %v", err)
	}
}

func TestComplete_ReturnsContentAndUsage(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-2","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":8,"completion_tokens":3,"total_tokens":11}}`))
	})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are concise.",
		UserPrompt:   "hello",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi there" {
		t.Fatalf("expected content %q, got %q", "hi there", resp.Content)
	}
	if resp.Usage.TotalTokens != 11 {
		t.Fatalf("expected 11 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestGenerateEmbedding_EmptyDataReturnsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[],"model":"text-embedding-3-small","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})

	_, err := c.GenerateEmbedding(context.Background(), "some text")
	if err == nil {
		t.Fatalf("expected an error for an embedding reply with no data")
	}
}
