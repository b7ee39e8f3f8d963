package chunker

// chunkWindows cuts text into fixed windows of TargetTokens with the
// configured overlap between consecutive windows. Used for unstructured
// text and for oversized markdown sections.
func (c *Chunker) chunkWindows(text string) []rawChunk {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := c.cfg.TargetTokens - c.overlapTokens()
	if step < 1 {
		step = 1
	}

	var chunks []rawChunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.TargetTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := c.enc.Decode(tokens[start:end])
		chunks = append(chunks, rawChunk{
			text:   window,
			tokens: end - start,
			page:   1,
		})
		if end == len(tokens) {
			break
		}
	}

	// a trailing sliver smaller than the minimum folds into its predecessor
	if n := len(chunks); n > 1 && chunks[n-1].tokens < c.cfg.MinTokens {
		chunks = chunks[:n-1]
	}

	return chunks
}
