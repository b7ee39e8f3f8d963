package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docgraph/pkg/ai"
	"docgraph/pkg/common"
)

type fakeAI struct {
	response    string
	err         error
	fallbackOK  bool
	calls       []ai.GenerateOptions
	lastMessage []ai.ChatMessage
}

func (f *fakeAI) GenerateCompletion(_ context.Context, _ string, _ ...ai.GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeAI) GenerateCompletionWithFormat(_ context.Context, _, _, _ string, _ any, _ ...ai.GenerateOption) error {
	return f.err
}

func (f *fakeAI) GenerateChat(_ context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	var options ai.GenerateOptions
	for _, opt := range opts {
		opt(&options)
	}
	f.calls = append(f.calls, options)
	f.lastMessage = messages

	if f.err != nil && !(f.fallbackOK && len(f.calls) > 1) {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeAI) GenerateEmbedding(_ context.Context, _ []byte) ([]float32, error) {
	return nil, nil
}

func (f *fakeAI) GenerateEmbeddings(_ context.Context, _ [][]byte) ([][]float32, error) {
	return nil, nil
}

func (f *fakeAI) ResetMetrics()               {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func chunk(id, docID, fileName, text string, page int) common.ScoredChunk {
	return common.ScoredChunk{
		Chunk:    common.Chunk{ID: id, DocID: docID, Text: text, Page: page},
		FileName: fileName,
		Source:   common.SourceVector,
	}
}

func TestGenerateEmptyRetrieval(t *testing.T) {
	client := &fakeAI{}
	g := NewGenerator(client, "primary", "")

	result, err := g.Generate(context.Background(), "anything", nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Answer != noResultsAnswer {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(client.calls) != 0 {
		t.Error("model should not be called without chunks")
	}
}

func TestGenerateParsesCitations(t *testing.T) {
	client := &fakeAI{response: "The voltage is 12V [1] and the fuse rating is 5A [2, 3]."}
	g := NewGenerator(client, "primary", "")

	chunks := []common.ScoredChunk{
		chunk("c1", "d1", "power.pdf", "Bus voltage is 12V.", 4),
		chunk("c2", "d1", "power.pdf", "Fuse rating table.", 9),
		chunk("c3", "d2", "safety.pdf", "Fuses must be rated 5A.", 2),
	}
	result, err := g.Generate(context.Background(), "What is the voltage?", chunks, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Citations) != 3 {
		t.Fatalf("citations = %d, want 3", len(result.Citations))
	}
	if result.Citations[0].FileName != "power.pdf" || result.Citations[0].Page != 4 {
		t.Errorf("citation 1 = %+v", result.Citations[0])
	}
	// the context is not in synthesis mode, so nothing is multi source
	for _, c := range result.Citations {
		if c.MultiSource {
			t.Errorf("citation %d flagged multi source outside synthesis", c.Index)
		}
	}
}

func TestMultiSourceOnlyInSynthesis(t *testing.T) {
	synthesisChunks := []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "alpha one", 1),
		chunk("c2", "d1", "a.pdf", "alpha two", 2),
		chunk("c3", "d2", "b.pdf", "beta one", 1),
		chunk("c4", "d2", "b.pdf", "beta two", 2),
	}

	client := &fakeAI{response: "Combined finding [3, 4] and a lone source [1]."}
	g := NewGenerator(client, "primary", "")
	result, err := g.Generate(context.Background(), "compare", synthesisChunks, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Synthesis {
		t.Fatal("expected synthesis mode")
	}
	if len(result.Citations) != 3 {
		t.Fatalf("citations = %d, want 3", len(result.Citations))
	}
	if result.Citations[0].MultiSource {
		t.Error("entry 1 has no cited neighbor and should not be multi source")
	}
	if !result.Citations[1].MultiSource || !result.Citations[2].MultiSource {
		t.Errorf("adjacent cited entries should be multi source: %+v", result.Citations[1:])
	}
}

func TestGenerateSynthesisMode(t *testing.T) {
	client := &fakeAI{response: "Combined answer [1][3]."}
	g := NewGenerator(client, "primary", "")

	chunks := []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "alpha one", 1),
		chunk("c2", "d1", "a.pdf", "alpha two", 2),
		chunk("c3", "d2", "b.pdf", "beta one", 1),
		chunk("c4", "d2", "b.pdf", "beta two", 2),
	}
	result, err := g.Generate(context.Background(), "compare", chunks, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Synthesis {
		t.Error("expected synthesis mode")
	}

	var contextPrompt string
	for _, p := range client.calls[0].SystemPrompts {
		if strings.Contains(p, "===") {
			contextPrompt = p
		}
	}
	if !strings.Contains(contextPrompt, "=== a.pdf ===") || !strings.Contains(contextPrompt, "=== b.pdf ===") {
		t.Errorf("context not grouped by file:\n%s", contextPrompt)
	}
}

func TestGraphChunksDoNotTriggerSynthesis(t *testing.T) {
	client := &fakeAI{response: "answer"}
	g := NewGenerator(client, "primary", "")

	chunks := []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "alpha one", 1),
		chunk("c2", "d1", "a.pdf", "alpha two", 2),
		{Chunk: common.Chunk{ID: "g1", DocID: "d2", Text: "edge"}, FileName: "knowledge graph", Source: common.SourceGraph},
		{Chunk: common.Chunk{ID: "g2", DocID: "d2", Text: "edge2"}, FileName: "knowledge graph", Source: common.SourceGraph},
	}
	result, err := g.Generate(context.Background(), "q", chunks, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Synthesis {
		t.Error("graph chunks must not count towards synthesis")
	}
}

func TestGenerateModelFallback(t *testing.T) {
	client := &fakeAI{response: "fallback answer", err: errors.New("model offline"), fallbackOK: true}
	g := NewGenerator(client, "primary", "older-model")

	result, err := g.Generate(context.Background(), "q", []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "text", 1),
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Answer != "fallback answer" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(client.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(client.calls))
	}
	second := client.calls[1]
	if second.Model != "older-model" || !second.LegacyParams {
		t.Errorf("fallback options = %+v", second)
	}
	if second.HasTemperature {
		t.Error("fallback must not set temperature")
	}
}

func TestGenerateNoFallbackOnUnrelatedErrors(t *testing.T) {
	client := &fakeAI{response: "never", err: errors.New("connection refused"), fallbackOK: true}
	g := NewGenerator(client, "primary", "older-model")

	_, err := g.Generate(context.Background(), "q", []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "text", 1),
	}, nil)
	if err == nil {
		t.Fatal("expected error to surface")
	}
	if len(client.calls) != 1 {
		t.Errorf("calls = %d, fallback must not run for transport errors", len(client.calls))
	}
}

func TestGenerateTruncatesHistory(t *testing.T) {
	client := &fakeAI{response: "answer"}
	g := NewGenerator(client, "primary", "")

	var history []ai.ChatMessage
	for i := 0; i < 15; i++ {
		history = append(history, ai.ChatMessage{Role: "user", Message: "old"})
	}
	_, err := g.Generate(context.Background(), "q", []common.ScoredChunk{
		chunk("c1", "d1", "a.pdf", "text", 1),
	}, history)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 10 history messages plus the query
	if len(client.lastMessage) != 11 {
		t.Errorf("messages = %d, want 11", len(client.lastMessage))
	}
}

func TestExpandReference(t *testing.T) {
	tests := []struct {
		ref  string
		want []int
	}{
		{"1", []int{1}},
		{"2, 4", []int{2, 4}},
		{"3-5", []int{3, 4, 5}},
		{"1, 3-4", []int{1, 3, 4}},
		{"9-2", nil},
	}
	for _, tt := range tests {
		got := expandReference(tt.ref)
		if len(got) != len(tt.want) {
			t.Errorf("expandReference(%q) = %v, want %v", tt.ref, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("expandReference(%q) = %v, want %v", tt.ref, got, tt.want)
				break
			}
		}
	}
}
