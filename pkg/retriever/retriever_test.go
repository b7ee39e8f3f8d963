package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docgraph/pkg/common"
	"docgraph/pkg/graph/store"
	"docgraph/pkg/index"
)

type fakeIndex struct {
	results     []common.ScoredChunk
	firstChunks map[string][]common.ScoredChunk
	searchErr   error
	lastParams  index.SearchParams
}

func (f *fakeIndex) Search(_ context.Context, params index.SearchParams) ([]common.ScoredChunk, error) {
	f.lastParams = params
	return f.results, f.searchErr
}

func (f *fakeIndex) FirstChunks(_ context.Context, docID string, n int) ([]common.ScoredChunk, error) {
	chunks := f.firstChunks[docID]
	if len(chunks) > n {
		chunks = chunks[:n]
	}
	return chunks, nil
}

type fakeGraph struct {
	entities []string
	edges    []store.SubgraphEdge
	related  map[string][]common.DocRelationship

	matchErr  error
	lastDepth int
}

func (f *fakeGraph) MatchEntities(_ context.Context, _ string, _ []string, limit int) ([]string, error) {
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	if len(f.entities) > limit {
		return f.entities[:limit], nil
	}
	return f.entities, nil
}

func (f *fakeGraph) Subgraph(_ context.Context, _ string, _ []string, depth int) ([]store.SubgraphEdge, error) {
	f.lastDepth = depth
	return f.edges, nil
}

func (f *fakeGraph) RelatedDocuments(_ context.Context, docID string) ([]common.DocRelationship, error) {
	return f.related[docID], nil
}

func vectorChunk(id, docID, text string, score float64) common.ScoredChunk {
	return common.ScoredChunk{
		Chunk:  common.Chunk{ID: id, DocID: docID, Text: text},
		Score:  score,
		Source: common.SourceVector,
	}
}

func TestGraphDepth(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"what is the battery capacity", 1},
		{"how does the IMU depend on the GPS", 2},
		{"interaction between modules", 2},
		{"GPS Receiver and Flight Controller wiring", 2},
		{"Telemetry setup", 1},
	}
	for _, tt := range tests {
		if got := graphDepth(tt.query); got != tt.want {
			t.Errorf("graphDepth(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestRetrieveMergesChannels(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{
			vectorChunk("c1", "d1", "The flight controller handles attitude.", 0.95),
			vectorChunk("c2", "d2", "Battery safety procedures.", 0.5),
		},
	}
	graph := &fakeGraph{
		entities: []string{"Flight Controller"},
		edges: []store.SubgraphEdge{
			{Source: "Flight Controller", Target: "IMU", Type: "depends_on", Description: "attitude data", DocID: "d1"},
		},
	}

	r := New(idx, graph, nil)
	chunks, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "Flight Controller IMU wiring"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if diag.VectorResults != 2 || diag.GraphResults != 1 {
		t.Errorf("diagnostics = %+v", diag)
	}
	if diag.GraphDepth != 2 {
		t.Errorf("depth = %d, want 2", diag.GraphDepth)
	}

	var sources []string
	for _, c := range chunks {
		sources = append(sources, c.Source)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 merged chunks, got %d (%v)", len(chunks), sources)
	}
	// graph pseudo-chunks follow the search results
	if chunks[2].Source != common.SourceGraph {
		t.Errorf("last chunk source = %q", chunks[2].Source)
	}
	if !strings.Contains(chunks[2].Text, "depends on") {
		t.Errorf("graph chunk text = %q", chunks[2].Text)
	}
	if got := chunks[2].Entities; len(got) != 2 || got[0] != "Flight Controller" {
		t.Errorf("graph chunk entities = %v", got)
	}
}

func TestRetrieveExpandsAcronyms(t *testing.T) {
	idx := &fakeIndex{}
	r := New(idx, &fakeGraph{}, nil)

	_, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "IMU calibration steps"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.Contains(idx.lastParams.Query, "Inertial Measurement Unit") {
		t.Errorf("search query = %q, expected expanded acronym", idx.lastParams.Query)
	}
	if diag.ExpandedQuery == "" {
		t.Error("expected expanded query in diagnostics")
	}
}

func TestRetrieveGraphFailureDegrades(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{vectorChunk("c1", "d1", "content", 0.8)},
	}
	graph := &fakeGraph{matchErr: errors.New("db down")}

	r := New(idx, graph, nil)
	chunks, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "Telemetry radio"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 1 || diag.GraphResults != 0 {
		t.Errorf("chunks = %d, diagnostics = %+v", len(chunks), diag)
	}
}

func TestRetrieveRelatedDocuments(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{vectorChunk("c1", "d1", "main content", 0.8)},
		firstChunks: map[string][]common.ScoredChunk{
			"d2": {
				{Chunk: common.Chunk{ID: "c10", DocID: "d2", Index: 0, Text: "related intro"}, FileName: "b.pdf"},
				{Chunk: common.Chunk{ID: "c11", DocID: "d2", Index: 1, Text: "related detail"}, FileName: "b.pdf"},
				{Chunk: common.Chunk{ID: "c12", DocID: "d2", Index: 2, Text: "too deep"}, FileName: "b.pdf"},
			},
		},
	}
	graph := &fakeGraph{
		related: map[string][]common.DocRelationship{
			"d1": {{SourceDocID: "d1", TargetDocID: "d2", Type: common.DocRelExplicitCitation, Strength: 0.7}},
		},
	}

	r := New(idx, graph, nil)
	chunks, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "wiring overview"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if diag.RelatedResults != 2 {
		t.Fatalf("related results = %d, want 2", diag.RelatedResults)
	}
	var relatedCount int
	for _, c := range chunks {
		if c.Source == common.SourceRelationship {
			relatedCount++
			if c.Score != 0.7 {
				t.Errorf("related chunk score = %v, want relationship strength", c.Score)
			}
		}
	}
	if relatedCount != 2 {
		t.Errorf("related chunks in merge = %d, want 2", relatedCount)
	}
}

func graphEdgeChunk(id string, score float64, entities ...string) common.ScoredChunk {
	return common.ScoredChunk{
		Chunk:    common.Chunk{ID: id, DocID: "d9", Text: strings.Join(entities, " depends on ")},
		Score:    score,
		Source:   common.SourceGraph,
		Entities: entities,
	}
}

func TestMergeKeepsAllSearchResults(t *testing.T) {
	vector := []common.ScoredChunk{
		vectorChunk("c1", "d1", "Bus voltage regulation.", 0.4),
		vectorChunk("c2", "d1", "Power distribution board.", 0.3),
	}
	var graph []common.ScoredChunk
	for i := 0; i < 10; i++ {
		graph = append(graph, graphEdgeChunk(
			"g"+string(rune('0'+i)), 0.9,
			"Node"+string(rune('A'+i)), "Node"+string(rune('a'+i)),
		))
	}

	merged := merge(vector, graph)
	if merged[0].ID != "c1" || merged[1].ID != "c2" {
		t.Fatalf("search results were displaced: %q %q", merged[0].ID, merged[1].ID)
	}
	if len(merged) != 4 {
		t.Errorf("merged = %d, want twice the search result count", len(merged))
	}
}

func TestMergeSkipsEntitiesInSearchText(t *testing.T) {
	vector := []common.ScoredChunk{
		vectorChunk("c1", "d1", "The Flight Controller handles attitude and failsafes.", 0.8),
		vectorChunk("c2", "d1", "Battery safety procedures.", 0.5),
	}
	graph := []common.ScoredChunk{
		graphEdgeChunk("g0", 0.9, "Flight Controller", "IMU"),
		graphEdgeChunk("g1", 0.9, "GPS Receiver", "Antenna"),
	}

	merged := merge(vector, graph)
	if len(merged) != 3 {
		t.Fatalf("merged = %d, want 3", len(merged))
	}
	for _, c := range merged {
		if c.ID == "g0" {
			t.Error("graph chunk kept although its entity appears in search text")
		}
	}
	if merged[2].ID != "g1" {
		t.Errorf("kept graph chunk = %q, want g1", merged[2].ID)
	}
}

func TestMergeCapsAtTwiceSearchCount(t *testing.T) {
	vector := []common.ScoredChunk{
		vectorChunk("c1", "d1", "Telemetry link budget.", 0.8),
	}
	var graph []common.ScoredChunk
	for i := 0; i < 5; i++ {
		graph = append(graph, graphEdgeChunk(
			"g"+string(rune('0'+i)), 0.9,
			"Part"+string(rune('A'+i)), "Part"+string(rune('a'+i)),
		))
	}

	merged := merge(vector, graph)
	if len(merged) != 2 {
		t.Errorf("merged = %d, want 2", len(merged))
	}
}

type fakeExtractor struct {
	names []string
	err   error

	lastQuery string
}

func (f *fakeExtractor) QueryEntities(_ context.Context, query string) ([]string, error) {
	f.lastQuery = query
	return f.names, f.err
}

func TestRetrievePrefersExtractedEntities(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{
			vectorChunk("c1", "d1", "Compass calibration procedure.", 0.9),
		},
	}
	graph := &fakeGraph{
		entities: []string{"Magnetometer"},
		edges: []store.SubgraphEdge{
			{Source: "Magnetometer", Target: "Compass", Type: "is_part_of", DocID: "d1"},
		},
	}
	ext := &fakeExtractor{names: []string{"Magnetometer"}}
	r := New(idx, graph, ext)

	_, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "how do I calibrate the compass"})
	if err != nil {
		t.Fatal(err)
	}
	if ext.lastQuery == "" {
		t.Error("extractor was not consulted")
	}
	if diag.GraphResults != 1 {
		t.Errorf("graph results = %d, want 1", diag.GraphResults)
	}
}

func TestRetrieveExtractorFailureFallsBackToLexical(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{
			vectorChunk("c1", "d1", "Receiver wiring.", 0.9),
		},
	}
	graph := &fakeGraph{
		entities: []string{"GPS Receiver"},
		edges: []store.SubgraphEdge{
			{Source: "GPS Receiver", Target: "Antenna", Type: "connects_to", DocID: "d1"},
		},
	}
	r := New(idx, graph, &fakeExtractor{err: errors.New("model down")})

	_, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "where does the Receiver antenna go"})
	if err != nil {
		t.Fatal(err)
	}
	if diag.GraphResults != 1 {
		t.Errorf("graph results = %d, want 1", diag.GraphResults)
	}
}

func TestRetrieveRelatedFromGraphDocuments(t *testing.T) {
	idx := &fakeIndex{
		results: []common.ScoredChunk{vectorChunk("c1", "d1", "Gimbal mount overview.", 0.8)},
		firstChunks: map[string][]common.ScoredChunk{
			"d4": {
				{Chunk: common.Chunk{ID: "c20", DocID: "d4", Text: "companion intro"}, FileName: "c.pdf"},
			},
		},
	}
	// the graph edge lives in d3; only d3 is related to d4
	graph := &fakeGraph{
		entities: []string{"Stabilizer"},
		edges: []store.SubgraphEdge{
			{Source: "Stabilizer", Target: "Camera", Type: "connects_to", DocID: "d3"},
		},
		related: map[string][]common.DocRelationship{
			"d3": {{SourceDocID: "d3", TargetDocID: "d4", Type: common.DocRelSharedEntities, Strength: 0.6}},
		},
	}

	r := New(idx, graph, nil)
	chunks, diag, err := r.Retrieve(context.Background(), Params{OwnerID: "u1", Query: "Stabilizer wiring"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if diag.RelatedResults != 1 {
		t.Fatalf("related results = %d, want 1 via graph doc", diag.RelatedResults)
	}
	last := chunks[len(chunks)-1]
	if last.Source != common.SourceRelationship || last.DocID != "d4" {
		t.Errorf("related chunk = %+v", last)
	}
}
