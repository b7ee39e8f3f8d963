package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docgraph/pkg/common"
)

func chunkList(texts ...string) []common.ScoredChunk {
	out := make([]common.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = common.ScoredChunk{
			Chunk: common.Chunk{ID: text, Text: text},
			Score: 1 - float64(i)*0.1,
		}
	}
	return out
}

func TestRerankReordersByRelevance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 3 {
			t.Errorf("documents = %d", len(req.Documents))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.4},
				{"index": 1, "relevance_score": 0.1},
			},
		})
	}))
	defer server.Close()

	c := NewClient(NewClientParams{BaseURL: server.URL, APIKey: "key"})
	got := c.Rerank(context.Background(), "query", chunkList("a", "b", "c"), 2)

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("order = %q, %q", got[0].ID, got[1].ID)
	}
	if got[0].Score != 0.95 {
		t.Errorf("score = %v", got[0].Score)
	}
}

func TestRerankFailureKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(NewClientParams{BaseURL: server.URL})
	got := c.Rerank(context.Background(), "query", chunkList("a", "b", "c"), 2)

	if len(got) != 2 {
		t.Fatalf("expected truncated fallback, got %d chunks", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("order = %q, %q", got[0].ID, got[1].ID)
	}
}

func TestRerankUnconfiguredTruncates(t *testing.T) {
	c := NewClient(NewClientParams{})
	if c.Enabled() {
		t.Error("client without base URL should be disabled")
	}
	got := c.Rerank(context.Background(), "query", chunkList("a", "b", "c"), 2)
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("got %d chunks, first %q", len(got), got[0].ID)
	}
}

func TestRerankTimeoutKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(NewClientParams{BaseURL: server.URL, Timeout: 10 * time.Millisecond})
	got := c.Rerank(context.Background(), "query", chunkList("a", "b"), 5)
	if len(got) != 2 {
		t.Fatalf("expected fallback to all chunks, got %d", len(got))
	}
}
