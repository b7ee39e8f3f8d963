package graph

import (
	"context"
	"fmt"

	"docgraph/pkg/ai"
	"docgraph/pkg/common"
	"docgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const extractionConcurrency = 5

// Extraction is the structured output schema for a single chunk.
type Extraction struct {
	Entities      []common.Entity       `json:"entities" jsonschema_description:"Technical entities discussed in the text"`
	Relationships []common.Relationship `json:"relationships" jsonschema_description:"Relationships between the extracted entities"`
}

// Extractor runs LLM extraction over document chunks.
type Extractor struct {
	client ai.Client
	model  string
}

func NewExtractor(client ai.Client, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Extract runs extraction over all chunks of a document and returns the
// merged, normalized graph. Chunks are processed concurrently with a fixed
// limit. A failing chunk contributes nothing; extraction is best effort and
// never fails the whole document.
func (e *Extractor) Extract(ctx context.Context, fileName string, chunks []common.Chunk) ([]common.Entity, []common.Relationship) {
	results := make([]Extraction, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(extractionConcurrency)

	for i, chunk := range chunks {
		group.Go(func() error {
			extraction, err := e.extractChunk(groupCtx, fileName, chunk)
			if err != nil {
				logger.Warn("graph extraction failed for chunk", "chunk_id", chunk.ID, "error", err)
				return nil
			}
			// record which chunk each entity came from; Normalize merges
			// the lists when the same entity shows up in several chunks
			for j := range extraction.Entities {
				extraction.Entities[j].Chunks = []string{chunk.ID}
			}
			results[i] = extraction
			return nil
		})
	}
	_ = group.Wait()

	var entities []common.Entity
	var relationships []common.Relationship
	for _, r := range results {
		entities = append(entities, r.Entities...)
		relationships = append(relationships, r.Relationships...)
	}

	return Normalize(entities, relationships)
}

// QueryEntities extracts the entity names mentioned in a free-text query,
// normalized the same way stored entities are. Used to seed graph traversal
// on the retrieval side.
func (e *Extractor) QueryEntities(ctx context.Context, query string) ([]string, error) {
	var out Extraction
	prompt := fmt.Sprintf(queryEntityPromptTemplate, query)

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(extractionSystemPrompt),
		ai.WithTemperature(0.1),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"query_entities",
		"Entities mentioned in a user question.",
		prompt,
		&out,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Entities))
	for _, entity := range out.Entities {
		if name := NormalizeName(entity.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (e *Extractor) extractChunk(ctx context.Context, fileName string, chunk common.Chunk) (Extraction, error) {
	var out Extraction
	prompt := fmt.Sprintf(extractionPromptTemplate, fileName, chunk.Text)

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(extractionSystemPrompt),
		ai.WithTemperature(0.1),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"knowledge_graph_extraction",
		"Entities and relationships found in a document excerpt.",
		prompt,
		&out,
		opts...,
	)
	if err != nil {
		return Extraction{}, err
	}
	return out, nil
}
