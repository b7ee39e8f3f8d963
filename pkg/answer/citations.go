package answer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"docgraph/pkg/common"
)

// matches [1], [2, 4] and [3-5]
var citationPattern = regexp.MustCompile(`\[(\d+(?:\s*[-,]\s*\d+)*)\]`)

// parseCitations extracts bracketed references from the answer and resolves
// them against the numbered context entries. References outside the entry
// range are dropped. In synthesis mode a citation is flagged multi source
// when an adjacent context entry is also cited, meaning the answer combined
// neighboring entries.
func parseCitations(text string, chunks []common.ScoredChunk, synthesis bool) []Citation {
	cited := make(map[int]struct{})
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, n := range expandReference(match[1]) {
			if n >= 1 && n <= len(chunks) {
				cited[n] = struct{}{}
			}
		}
	}
	if len(cited) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(cited))
	for n := range cited {
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	citations := make([]Citation, 0, len(indexes))
	for _, n := range indexes {
		chunk := chunks[n-1]
		citations = append(citations, Citation{
			Index:       n,
			ChunkID:     chunk.ID,
			DocID:       chunk.DocID,
			FileName:    chunk.FileName,
			Page:        chunk.Page,
			MultiSource: synthesis && adjacentCited(n, cited),
		})
	}
	return citations
}

func adjacentCited(n int, cited map[int]struct{}) bool {
	for _, m := range []int{n - 1, n + 1} {
		if _, ok := cited[m]; ok {
			return true
		}
	}
	return false
}

// expandReference turns "2, 4" into [2 4] and "3-5" into [3 4 5]. Mixed
// forms expand part by part.
func expandReference(ref string) []int {
	var out []int
	for _, part := range strings.Split(ref, ",") {
		part = strings.TrimSpace(part)
		if from, to, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(from))
			end, err2 := strconv.Atoi(strings.TrimSpace(to))
			if err1 != nil || err2 != nil || end < start || end-start > 50 {
				continue
			}
			for n := start; n <= end; n++ {
				out = append(out, n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
