// Package retriever runs the query side of the pipeline: hybrid chunk
// search, knowledge graph traversal seeded from entities found in the
// query, and context pulled in from related documents. The channels are
// merged into a single ranked result set.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docgraph/pkg/common"
	"docgraph/pkg/graph/store"
	"docgraph/pkg/index"
	"docgraph/pkg/logger"
)

const (
	graphScore       = 0.9
	maxSeedEntities  = 3
	maxRelatedDocs   = 2
	relatedDocChunks = 2
)

// SearchIndex is the chunk retrieval surface the retriever depends on.
type SearchIndex interface {
	Search(ctx context.Context, params index.SearchParams) ([]common.ScoredChunk, error)
	FirstChunks(ctx context.Context, docID string, n int) ([]common.ScoredChunk, error)
}

// GraphStore is the knowledge graph surface the retriever depends on.
type GraphStore interface {
	MatchEntities(ctx context.Context, ownerID string, terms []string, limit int) ([]string, error)
	Subgraph(ctx context.Context, ownerID string, seeds []string, depth int) ([]store.SubgraphEdge, error)
	RelatedDocuments(ctx context.Context, docID string) ([]common.DocRelationship, error)
}

// EntityExtractor finds entity names in query text. Optional; without one
// the retriever falls back to a lexical heuristic.
type EntityExtractor interface {
	QueryEntities(ctx context.Context, query string) ([]string, error)
}

type Retriever struct {
	index     SearchIndex
	graph     GraphStore
	extractor EntityExtractor
}

func New(idx SearchIndex, graph GraphStore, extractor EntityExtractor) *Retriever {
	return &Retriever{index: idx, graph: graph, extractor: extractor}
}

// Params controls a retrieval run. Zero values take the index defaults.
type Params struct {
	OwnerID        string
	Query          string
	Limit          int
	SemanticWeight float64
	MinScore       float64
	DocIDs         []string
}

// Diagnostics reports what each channel contributed. Returned alongside
// results so callers can expose retrieval behavior without re-running it.
type Diagnostics struct {
	VectorResults  int      `json:"vector_results"`
	GraphResults   int      `json:"graph_results"`
	RelatedResults int      `json:"related_results"`
	GraphDepth     int      `json:"graph_depth"`
	SeedEntities   []string `json:"seed_entities,omitempty"`
	ExpandedQuery  string   `json:"expanded_query,omitempty"`

	ScoreMin  float64 `json:"score_min"`
	ScoreMax  float64 `json:"score_max"`
	ScoreMean float64 `json:"score_mean"`

	VectorMs  int64 `json:"vector_ms"`
	GraphMs   int64 `json:"graph_ms"`
	RelatedMs int64 `json:"related_ms"`
}

func (d *Diagnostics) recordScores(chunks []common.ScoredChunk) {
	if len(chunks) == 0 {
		return
	}
	d.ScoreMin = chunks[0].Score
	d.ScoreMax = chunks[0].Score
	var sum float64
	for _, c := range chunks {
		if c.Score < d.ScoreMin {
			d.ScoreMin = c.Score
		}
		if c.Score > d.ScoreMax {
			d.ScoreMax = c.Score
		}
		sum += c.Score
	}
	d.ScoreMean = sum / float64(len(chunks))
}

// Retrieve runs all channels and merges their results. Graph and related
// document channels are best effort; their failures degrade to vector-only
// results.
func (r *Retriever) Retrieve(ctx context.Context, params Params) ([]common.ScoredChunk, Diagnostics, error) {
	if params.Limit <= 0 {
		params.Limit = index.DefaultLimit
	}

	query := common.ExpandAcronyms(params.Query)
	diag := Diagnostics{GraphDepth: graphDepth(params.Query)}
	if query != params.Query {
		diag.ExpandedQuery = query
	}

	start := time.Now()
	vector, err := r.index.Search(ctx, index.SearchParams{
		OwnerID:        params.OwnerID,
		Query:          query,
		Limit:          params.Limit,
		SemanticWeight: params.SemanticWeight,
		MinScore:       params.MinScore,
		DocIDs:         params.DocIDs,
	})
	if err != nil {
		return nil, diag, fmt.Errorf("vector search: %w", err)
	}
	diag.VectorResults = len(vector)
	diag.VectorMs = time.Since(start).Milliseconds()

	start = time.Now()
	graphChunks := r.graphChannel(ctx, params.OwnerID, params.Query, diag.GraphDepth, &diag)
	diag.GraphMs = time.Since(start).Milliseconds()

	merged := merge(vector, graphChunks)

	start = time.Now()
	related := r.relatedChannel(ctx, merged)
	diag.RelatedResults = len(related)
	diag.RelatedMs = time.Since(start).Milliseconds()

	results := append(merged, related...)
	diag.recordScores(results)
	return results, diag, nil
}

// graphChannel seeds traversal with entities matched from the query and
// renders the resulting edges as pseudo-chunks.
func (r *Retriever) graphChannel(ctx context.Context, ownerID string, query string, depth int, diag *Diagnostics) []common.ScoredChunk {
	terms := r.queryTerms(ctx, query)
	if len(terms) == 0 {
		return nil
	}

	seeds, err := r.graph.MatchEntities(ctx, ownerID, terms, maxSeedEntities)
	if err != nil {
		logger.Warn("entity matching failed, skipping graph channel", "error", err)
		return nil
	}
	if len(seeds) == 0 {
		return nil
	}
	diag.SeedEntities = seeds

	edges, err := r.graph.Subgraph(ctx, ownerID, seeds, depth)
	if err != nil {
		logger.Warn("graph traversal failed, skipping graph channel", "error", err)
		return nil
	}

	chunks := make([]common.ScoredChunk, 0, len(edges))
	for i, edge := range edges {
		chunks = append(chunks, common.ScoredChunk{
			Chunk: common.Chunk{
				ID:    fmt.Sprintf("graph-%d", i),
				DocID: edge.DocID,
				Text:  renderEdge(edge),
			},
			FileName: "knowledge graph",
			Score:    graphScore,
			Source:   common.SourceGraph,
			Entities: []string{edge.Source, edge.Target},
		})
	}
	diag.GraphResults = len(chunks)
	return chunks
}

func renderEdge(edge store.SubgraphEdge) string {
	s := fmt.Sprintf("%s %s %s", edge.Source, strings.ReplaceAll(edge.Type, "_", " "), edge.Target)
	if edge.Description != "" {
		s += ": " + edge.Description
	}
	return s
}

// relatedChannel pulls leading chunks from documents related to the docs
// already in the merged result set, graph pseudo-chunks included. At most
// two related documents contribute, two chunks each.
func (r *Retriever) relatedChannel(ctx context.Context, base []common.ScoredChunk) []common.ScoredChunk {
	seenDocs := make(map[string]struct{})
	for _, chunk := range base {
		seenDocs[chunk.DocID] = struct{}{}
	}

	var out []common.ScoredChunk
	pulled := make(map[string]struct{})
	for _, chunk := range base {
		if len(pulled) >= maxRelatedDocs {
			break
		}
		rels, err := r.graph.RelatedDocuments(ctx, chunk.DocID)
		if err != nil {
			logger.Warn("related document lookup failed", "doc_id", chunk.DocID, "error", err)
			continue
		}
		for _, rel := range rels {
			if len(pulled) >= maxRelatedDocs {
				break
			}
			targetID := rel.TargetDocID
			if targetID == chunk.DocID {
				targetID = rel.SourceDocID
			}
			if _, hit := seenDocs[targetID]; hit {
				continue
			}
			if _, dup := pulled[targetID]; dup {
				continue
			}
			chunks, err := r.index.FirstChunks(ctx, targetID, relatedDocChunks)
			if err != nil {
				logger.Warn("related document fetch failed", "doc_id", targetID, "error", err)
				continue
			}
			pulled[targetID] = struct{}{}
			for _, c := range chunks {
				c.Score = rel.Strength
				c.Source = common.SourceRelationship
				out = append(out, c)
			}
		}
	}
	return out
}

// merge combines the search and graph channels. Search results are always
// kept. A graph pseudo-chunk is added only when none of its entity names
// already appears verbatim in the search result text, and the combined set
// is capped at twice the search result count.
func merge(vector, graph []common.ScoredChunk) []common.ScoredChunk {
	kept := make([]common.ScoredChunk, 0, len(vector)+len(graph))
	kept = append(kept, vector...)

	var b strings.Builder
	for _, c := range vector {
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	vectorText := b.String()

	maxKept := 2 * len(vector)
	for _, g := range graph {
		if len(kept) >= maxKept {
			break
		}
		if mentionsAny(vectorText, g.Entities) {
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

func mentionsAny(text string, names []string) bool {
	for _, name := range names {
		if name != "" && strings.Contains(text, name) {
			return true
		}
	}
	return false
}

// graphDepth picks the traversal depth from the query shape: relational
// phrasing or multiple named things warrant going one hop further.
func graphDepth(query string) int {
	lower := strings.ToLower(query)
	relational := []string{
		"depend", "connect", "relate", "affect", "interact",
		"between", "part of", "cause", "impact", "config",
	}
	for _, p := range relational {
		if strings.Contains(lower, p) {
			return 2
		}
	}
	if len(capitalizedTerms(query)) >= 2 {
		return 2
	}
	return 1
}

// queryTerms finds candidate entity names in the query, preferring the
// extraction model and degrading to the lexical heuristic when it fails or
// finds nothing.
func (r *Retriever) queryTerms(ctx context.Context, query string) []string {
	if r.extractor != nil {
		names, err := r.extractor.QueryEntities(ctx, query)
		if err != nil {
			logger.Warn("query entity extraction failed, using lexical terms", "error", err)
		} else if len(names) > 0 {
			return names
		}
	}
	return entityTerms(query)
}

// entityTerms extracts candidate entity names from the query: capitalized
// words outside sentence starts, known acronyms, and hyphenated codes.
func entityTerms(query string) []string {
	terms := capitalizedTerms(query)

	seen := make(map[string]struct{}, len(terms))
	var out []string
	for _, t := range terms {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

var questionWords = map[string]struct{}{
	"what": {}, "which": {}, "where": {}, "when": {}, "who": {},
	"why": {}, "how": {}, "does": {}, "is": {}, "are": {}, "can": {},
	"the": {}, "a": {}, "an": {},
}

func capitalizedTerms(query string) []string {
	var terms []string
	for _, word := range strings.Fields(query) {
		trimmed := strings.Trim(word, ".,;:!?()[]\"'")
		if trimmed == "" {
			continue
		}
		if _, q := questionWords[strings.ToLower(trimmed)]; q {
			continue
		}
		first := rune(trimmed[0])
		if first >= 'A' && first <= 'Z' {
			terms = append(terms, trimmed)
		}
	}
	return terms
}
