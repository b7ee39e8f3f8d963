// Package answer generates grounded answers from reranked retrieval
// results. Context entries are numbered so the model can cite them; the
// citations are parsed back out of the answer and resolved to chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"docgraph/pkg/ai"
	"docgraph/pkg/common"
	"docgraph/pkg/logger"
)

const maxHistoryMessages = 10

// Generator produces answers with a primary model and an optional fallback
// model for when the primary is unavailable.
type Generator struct {
	client        ai.Client
	model         string
	fallbackModel string
}

func NewGenerator(client ai.Client, model string, fallbackModel string) *Generator {
	return &Generator{client: client, model: model, fallbackModel: fallbackModel}
}

// Citation resolves a bracketed reference in the answer back to its source.
type Citation struct {
	Index       int    `json:"index"`
	ChunkID     string `json:"chunk_id"`
	DocID       string `json:"doc_id"`
	FileName    string `json:"file_name"`
	Page        int    `json:"page_number,omitempty"`
	MultiSource bool   `json:"multi_source"`
}

// Result is a generated answer with its resolved citations.
type Result struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Synthesis bool       `json:"synthesis"`
}

// Generate answers the query from the given chunks. With no chunks a fixed
// no-results answer is returned without calling the model. History beyond
// the last ten messages is dropped.
func (g *Generator) Generate(ctx context.Context, query string, chunks []common.ScoredChunk, history []ai.ChatMessage) (Result, error) {
	if len(chunks) == 0 {
		return Result{Answer: noResultsAnswer}, nil
	}

	synthesis := isSynthesis(chunks)
	contextBlock := buildContext(chunks, synthesis)

	prompts := []string{systemPrompt}
	if synthesis {
		prompts = append(prompts, synthesisPrompt)
	}
	prompts = append(prompts, "Context:\n\n"+contextBlock)

	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	messages := append(append([]ai.ChatMessage{}, history...), ai.ChatMessage{
		Role:    "user",
		Message: query,
	})

	text, err := g.generateWithFallback(ctx, messages, prompts)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Answer:    text,
		Citations: parseCitations(text, chunks, synthesis),
		Synthesis: synthesis,
	}, nil
}

// fallbackIndicators are error fragments that point at the model itself
// being the problem: unknown or unavailable models and rejected request
// parameters. Other failures surface directly since retrying them on an
// older model cannot help.
var fallbackIndicators = []string{
	"model",
	"not found",
	"unsupported",
	"not supported",
	"unavailable",
	"parameter",
	"temperature",
	"max_tokens",
}

func shouldFallback(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range fallbackIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// generateWithFallback tries the primary model and falls back once when the
// error indicates the model is unavailable or rejected a parameter. The
// fallback request uses legacy completion parameters and no temperature
// since fallback models tend to be older and reject both.
func (g *Generator) generateWithFallback(ctx context.Context, messages []ai.ChatMessage, prompts []string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(prompts...),
		ai.WithTemperature(0.2),
	}
	if g.model != "" {
		opts = append(opts, ai.WithModel(g.model))
	}

	text, err := g.client.GenerateChat(ctx, messages, opts...)
	if err == nil {
		return text, nil
	}
	if g.fallbackModel == "" || !shouldFallback(err) {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	logger.Warn("primary model failed, using fallback", "model", g.model, "fallback", g.fallbackModel, "error", err)
	text, fbErr := g.client.GenerateChat(ctx, messages,
		ai.WithSystemPrompts(prompts...),
		ai.WithModel(g.fallbackModel),
		ai.WithLegacyParams(),
	)
	if fbErr != nil {
		return "", fmt.Errorf("answer generation failed on both models: %w", fbErr)
	}
	return text, nil
}

// isSynthesis reports whether the context warrants cross-document
// synthesis: at least two documents each contributing at least two chunks.
// Graph pseudo-chunks carry no document content and are not counted.
func isSynthesis(chunks []common.ScoredChunk) bool {
	perDoc := make(map[string]int)
	for _, chunk := range chunks {
		if chunk.Source == common.SourceGraph {
			continue
		}
		perDoc[chunk.DocID]++
	}
	docs := 0
	for _, n := range perDoc {
		if n >= 2 {
			docs++
		}
	}
	return docs >= 2
}

// buildContext renders chunks as numbered entries. In synthesis mode the
// entries are grouped per document under a filename header so the model
// sees document boundaries.
func buildContext(chunks []common.ScoredChunk, synthesis bool) string {
	var b strings.Builder

	if !synthesis {
		for i, chunk := range chunks {
			writeEntry(&b, i+1, chunk)
		}
		return b.String()
	}

	var order []string
	grouped := make(map[string][]int)
	for i, chunk := range chunks {
		name := chunk.FileName
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], i)
	}

	for _, name := range order {
		fmt.Fprintf(&b, "=== %s ===\n\n", name)
		for _, i := range grouped[name] {
			writeEntry(&b, i+1, chunks[i])
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, n int, chunk common.ScoredChunk) {
	if chunk.Page > 0 {
		fmt.Fprintf(b, "[%d: %s, p.%d]\n", n, chunk.FileName, chunk.Page)
	} else {
		fmt.Fprintf(b, "[%d: %s]\n", n, chunk.FileName)
	}
	b.WriteString(chunk.Text)
	b.WriteString("\n\n")
}
