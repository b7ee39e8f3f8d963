package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"docgraph/pkg/common"
)

// postprocess turns raw chunks into the final sequence: ids and indexes are
// assigned, overlap from the preceding chunk is prepended, exact duplicates
// are dropped, and anything still above the ceiling is force-split.
func (c *Chunker) postprocess(docID string, raw []rawChunk) []common.Chunk {
	if len(raw) == 0 {
		return nil
	}

	overlap := c.overlapTokens()
	overlapCeiling := int(float64(c.cfg.MaxTokens) * 0.8)

	chunks := make([]common.Chunk, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, rc := range raw {
		text := rc.text
		tokens := rc.tokens

		// carry context from the previous chunk, unless the previous
		// chunk is a table or already close to the ceiling
		if i > 0 && overlap > 0 {
			prev := raw[i-1]
			if !prev.table && !rc.table && prev.tokens <= overlapCeiling {
				text = c.tailTokens(prev.text, overlap) + "\n" + text
				tokens = c.CountTokens(text)
			}
		}

		hash := contentHash(text)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		chunk := common.Chunk{
			ID:      fmt.Sprintf("%s-chunk-%03d", docID, len(chunks)),
			DocID:   docID,
			Index:   len(chunks),
			Text:    text,
			Tokens:  tokens,
			Page:    rc.page,
			Section: rc.section,
		}

		if tokens > c.cfg.MaxTokens {
			chunks = append(chunks, c.forceSplit(chunk)...)
			continue
		}
		chunks = append(chunks, chunk)
	}

	// every chunk is re-counted against the ceiling before it leaves the
	// chunker; window decoding can shift token boundaries
	for i := range chunks {
		if count := c.CountTokens(chunks[i].Text); count > c.cfg.MaxTokens {
			chunks[i].Text, chunks[i].Tokens = c.fitToCeiling(chunks[i].Text)
		} else {
			chunks[i].Tokens = count
		}
	}

	return chunks
}

// forceSplit cuts an oversized chunk into ceiling-sized pieces. Decoding a
// token window and re-encoding it does not always round-trip to the same
// count, so every piece is re-counted and trimmed until it actually fits.
// Split pieces keep a derived id and an index range under the parent so
// ordering survives.
func (c *Chunker) forceSplit(chunk common.Chunk) []common.Chunk {
	tokens := c.enc.Encode(chunk.Text, nil, nil)

	var out []common.Chunk
	for start, n := 0, 0; start < len(tokens); start, n = start+c.cfg.MaxTokens, n+1 {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		text, count := c.fitToCeiling(c.enc.Decode(tokens[start:end]))
		out = append(out, common.Chunk{
			ID:      fmt.Sprintf("%s-split-%d", chunk.ID, n),
			DocID:   chunk.DocID,
			Index:   chunk.Index*100 + n,
			Text:    text,
			Tokens:  count,
			Page:    chunk.Page,
			Section: chunk.Section,
		})
	}
	return out
}

// fitToCeiling re-counts text and trims it from the end until it is at or
// under the token ceiling. Trimming prefers word boundaries and falls back
// to dropping runes when the text has none.
func (c *Chunker) fitToCeiling(text string) (string, int) {
	count := c.CountTokens(text)
	for count > c.cfg.MaxTokens && text != "" {
		if cut := strings.LastIndexAny(text, " \t\n"); cut > 0 {
			text = strings.TrimRight(text[:cut], " \t\n")
		} else {
			r := []rune(text)
			text = string(r[:len(r)-1])
		}
		count = c.CountTokens(text)
	}
	return text, count
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}
