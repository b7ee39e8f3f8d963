// Package parser wraps the external document parsing service. The service
// converts uploaded files (PDF, DOCX, ...) into structured elements plus a
// markdown rendition; this client only does transport, retries and error
// classification.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"docgraph/internal/util"
	"docgraph/pkg/logger"
)

// Element is a single structural unit of a parsed document.
type Element struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Page    int    `json:"page_number"`
	Section string `json:"section_title,omitempty"`
}

// Element types emitted by the parsing service.
const (
	ElementText    = "text"
	ElementHeading = "heading"
	ElementTable   = "table"
	ElementList    = "list"
)

// Result is the parsed form of one document.
type Result struct {
	Elements []Element `json:"elements"`
	Markdown string    `json:"markdown"`
	Pages    int       `json:"num_pages"`
}

// Client is a thin HTTP client for the parsing service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	maxTries int
	budget   time.Duration
}

// NewClientParams configures a parsing Client.
type NewClientParams struct {
	BaseURL string
	APIKey  string

	Timeout  time.Duration
	MaxTries int
	Budget   time.Duration
}

// NewClient creates a parsing client. Timeout applies per attempt,
// Budget to the whole retry loop.
func NewClient(params NewClientParams) *Client {
	if params.Timeout <= 0 {
		params.Timeout = 5 * time.Minute
	}
	if params.MaxTries <= 0 {
		params.MaxTries = 3
	}
	if params.Budget <= 0 {
		params.Budget = 15 * time.Minute
	}
	return &Client{
		baseURL:    params.BaseURL,
		apiKey:     params.APIKey,
		httpClient: &http.Client{Timeout: params.Timeout},
		maxTries:   params.MaxTries,
		budget:     params.Budget,
	}
}

// Parse sends the raw file to the parsing service and returns its structured
// result. Transient failures (5xx, 408, 429, transport errors) are retried
// with exponential backoff; other 4xx responses fail immediately.
func (c *Client) Parse(ctx context.Context, fileName string, data []byte) (*Result, error) {
	return util.RetryWithBackoff(ctx, util.BackoffOptions{
		MaxTries:  c.maxTries,
		BaseDelay: 2 * time.Second,
		MaxDelay:  30 * time.Second,
		Budget:    c.budget,
	}, func(ctx context.Context) (*Result, error) {
		result, err := c.parseOnce(ctx, fileName, data)
		if err != nil {
			logger.Warn("[Parser] Parse attempt failed", "file", fileName, "err", err)
		}
		return result, err
	})
}

func (c *Client) parseOnce(ctx context.Context, fileName string, data []byte) (*Result, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, util.Permanent(err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, util.Permanent(err)
	}
	if err := writer.Close(); err != nil {
		return nil, util.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", body)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("parse service returned %d: %s", resp.StatusCode, string(msg))
		if isTransientStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, util.Permanent(err)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, util.Permanent(fmt.Errorf("decode parse response: %w", err))
	}
	return &result, nil
}

func isTransientStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}
