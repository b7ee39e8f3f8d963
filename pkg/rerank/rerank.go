// Package rerank reorders retrieval results through an external cross
// encoder service. Reranking is an optional refinement: any failure falls
// back to the incoming order so retrieval never breaks because the service
// is down.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"docgraph/pkg/common"
	"docgraph/pkg/logger"
)

const DefaultTopK = 12

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type NewClientParams struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(params NewClientParams) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    params.BaseURL,
		apiKey:     params.APIKey,
		model:      params.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a rerank service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank reorders chunks by relevance to the query and truncates to topK.
// On any failure the incoming order is kept, truncated to topK. There is no
// retry; a rerank that needs retrying is slower than not reranking.
func (c *Client) Rerank(ctx context.Context, query string, chunks []common.ScoredChunk, topK int) []common.ScoredChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(chunks) == 0 {
		return chunks
	}
	if !c.Enabled() {
		return truncate(chunks, topK)
	}

	reranked, err := c.rerankOnce(ctx, query, chunks, topK)
	if err != nil {
		logger.Warn("rerank failed, keeping retrieval order", "error", err)
		return truncate(chunks, topK)
	}
	return reranked
}

func (c *Client) rerankOnce(ctx context.Context, query string, chunks []common.ScoredChunk, topK int) ([]common.ScoredChunk, error) {
	documents := make([]string, len(chunks))
	for i, chunk := range chunks {
		documents[i] = chunk.Text
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service returned status %d", res.StatusCode)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	sort.SliceStable(parsed.Results, func(i, j int) bool {
		return parsed.Results[i].RelevanceScore > parsed.Results[j].RelevanceScore
	})

	out := make([]common.ScoredChunk, 0, topK)
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(chunks) {
			return nil, fmt.Errorf("rerank index %d out of range", r.Index)
		}
		chunk := chunks[r.Index]
		chunk.Score = r.RelevanceScore
		out = append(out, chunk)
		if len(out) >= topK {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rerank returned no results")
	}
	return out, nil
}

func truncate(chunks []common.ScoredChunk, topK int) []common.ScoredChunk {
	if len(chunks) > topK {
		return chunks[:topK]
	}
	return chunks
}
