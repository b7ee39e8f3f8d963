// Package chunker segments parsed documents into token-bounded chunks for
// indexing. Three strategies are provided: element-based segmentation over
// the parser's structural output, markdown heading segmentation as the
// fallback, and fixed token windows for unstructured text.
package chunker

import (
	"fmt"
	"strings"

	"docgraph/pkg/common"
	"docgraph/pkg/logger"
	"docgraph/pkg/parser"

	"github.com/pkoukk/tiktoken-go"
)

// Config controls chunk sizing. All token counts refer to the configured
// encoding.
type Config struct {
	TargetTokens int     // soft size a chunk accumulates towards
	MaxTokens    int     // hard ceiling, never exceeded after post-processing
	Overlap      float64 // fraction of TargetTokens carried over from the previous chunk
	MinTokens    int     // chunks below this are merged or dropped
	Encoding     string
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{
		TargetTokens: 1000,
		MaxTokens:    10000,
		Overlap:      0.15,
		MinTokens:    50,
		Encoding:     "cl100k_base",
	}
}

// Chunker segments documents. The token encoder is constructed once and
// shared; construction is expensive so a single Chunker should be reused
// process-wide.
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
}

// New creates a Chunker with the given config, filling zero values from
// DefaultConfig.
func New(cfg Config) (*Chunker, error) {
	def := DefaultConfig()
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = def.TargetTokens
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = def.Overlap
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = def.MinTokens
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if cfg.MinTokens > cfg.TargetTokens || cfg.TargetTokens > cfg.MaxTokens {
		return nil, fmt.Errorf("invalid chunk sizing: min=%d target=%d max=%d", cfg.MinTokens, cfg.TargetTokens, cfg.MaxTokens)
	}

	enc, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %s: %w", cfg.Encoding, err)
	}

	return &Chunker{cfg: cfg, enc: enc}, nil
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// CountTokens returns the token count of text under the configured encoding.
func (c *Chunker) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// ChunkDocument segments a parsed document. Structural elements are
// preferred; the markdown rendition is the fallback; raw text without any
// structure goes through fixed windows. When structural segmentation
// yields nothing for a non-empty document, fixed windows over the flat
// text are the degraded last resort.
func (c *Chunker) ChunkDocument(docID string, parsed *parser.Result) ([]common.Chunk, error) {
	var raw []rawChunk
	switch {
	case len(parsed.Elements) > 0:
		raw = c.chunkElements(parsed.Elements)
	case parsed.Markdown != "":
		raw = c.chunkMarkdown(parsed.Markdown)
	default:
		return nil, nil
	}

	if len(raw) == 0 {
		text := parsed.Markdown
		if text == "" {
			text = flattenElements(parsed.Elements)
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		logger.Warn("structural segmentation produced no chunks, using fixed windows", "doc_id", docID)
		raw = c.chunkWindows(text)
	}

	return c.postprocess(docID, raw), nil
}

func flattenElements(elements []parser.Element) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		if el.Text != "" {
			parts = append(parts, el.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ChunkText segments unstructured text into fixed token windows.
func (c *Chunker) ChunkText(docID string, text string) []common.Chunk {
	return c.postprocess(docID, c.chunkWindows(text))
}

// rawChunk is a chunk before ids, overlap and dedupe are applied.
type rawChunk struct {
	text    string
	tokens  int
	page    int
	section string
	table   bool
}

func (c *Chunker) overlapTokens() int {
	return int(float64(c.cfg.TargetTokens) * c.cfg.Overlap)
}

// sliceTokens decodes the token range [from, to) of text back into a string.
func (c *Chunker) sliceTokens(text string, from, to int) string {
	tokens := c.enc.Encode(text, nil, nil)
	if from < 0 {
		from = 0
	}
	if to > len(tokens) {
		to = len(tokens)
	}
	if from >= to {
		return ""
	}
	return c.enc.Decode(tokens[from:to])
}

// tailTokens returns the last n tokens of text as a string.
func (c *Chunker) tailTokens(text string, n int) string {
	tokens := c.enc.Encode(text, nil, nil)
	if n >= len(tokens) {
		return text
	}
	return c.enc.Decode(tokens[len(tokens)-n:])
}
