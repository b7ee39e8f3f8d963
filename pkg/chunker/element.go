package chunker

import "docgraph/pkg/parser"

// chunkElements accumulates parser elements into chunks. Headings update the
// running section title and close the current chunk once it is large enough.
// Tables are emitted as their own chunks so they never straddle a boundary.
func (c *Chunker) chunkElements(elements []parser.Element) []rawChunk {
	var (
		chunks  []rawChunk
		cur     accumulator
		section string
	)

	flush := func() {
		if chunk, ok := cur.take(section); ok {
			chunks = append(chunks, chunk)
		}
	}

	for _, el := range elements {
		text := el.Text
		if text == "" {
			continue
		}
		tokens := c.CountTokens(text)

		switch el.Type {
		case parser.ElementHeading:
			if cur.tokens >= c.cfg.MinTokens {
				flush()
			}
			section = text
			cur.add(text, tokens, el.Page)

		case parser.ElementTable:
			flush()
			chunks = append(chunks, rawChunk{
				text:    text,
				tokens:  tokens,
				page:    el.Page,
				section: section,
				table:   true,
			})

		default:
			if cur.tokens > 0 && cur.tokens+tokens > c.cfg.TargetTokens {
				flush()
			}
			cur.add(text, tokens, el.Page)
		}
	}
	flush()

	return chunks
}

// accumulator grows a chunk from consecutive elements. The page is taken
// from the first element that contributed text.
type accumulator struct {
	parts  []string
	tokens int
	page   int
}

func (a *accumulator) add(text string, tokens int, page int) {
	if len(a.parts) == 0 {
		a.page = page
	}
	a.parts = append(a.parts, text)
	a.tokens += tokens
}

func (a *accumulator) take(section string) (rawChunk, bool) {
	if len(a.parts) == 0 {
		return rawChunk{}, false
	}
	chunk := rawChunk{
		text:    joinParts(a.parts),
		tokens:  a.tokens,
		page:    a.page,
		section: section,
	}
	*a = accumulator{}
	return chunk, true
}

func joinParts(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n\n" + p
	}
	return out
}
