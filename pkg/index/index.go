// Package index stores chunk embeddings in Postgres and serves hybrid
// retrieval: cosine similarity over pgvector blended with full text rank.
package index

import (
	"context"
	"fmt"

	"docgraph/internal/util"
	"docgraph/pkg/ai"
	"docgraph/pkg/common"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	DefaultLimit          = 25
	DefaultSemanticWeight = 0.7
	DefaultMinScore       = 0.3

	embeddingBatchSize = 64
)

type Store struct {
	pool     *pgxpool.Pool
	aiClient ai.Client
}

func New(pool *pgxpool.Pool, aiClient ai.Client) *Store {
	return &Store{pool: pool, aiClient: aiClient}
}

// IndexChunks embeds and stores all chunks of a document. Any previously
// indexed chunks of the document are replaced first so re-ingestion never
// leaves stale rows behind.
func (s *Store) IndexChunks(ctx context.Context, ownerID string, docID string, chunks []common.Chunk) error {
	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("clear indexed chunks: %w", err)
	}

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, doc_id, owner_id, chunk_index, text, token_count, page_number, section_title, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			chunk.ID, docID, ownerID, chunk.Index, util.SanitizePostgresText(chunk.Text), chunk.Tokens,
			chunk.Page, chunk.Section, pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) embedChunks(ctx context.Context, chunks []common.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([][]byte, 0, end-start)
		for _, chunk := range chunks[start:end] {
			batch = append(batch, []byte(chunk.Text))
		}
		vectors, err := s.aiClient.GenerateEmbeddings(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed chunk batch: %w", err)
		}
		embeddings = append(embeddings, vectors...)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}
	return embeddings, nil
}

// DeleteDocument removes all indexed chunks of a document.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("delete indexed chunks: %w", err)
	}
	return nil
}

// SearchParams controls hybrid retrieval. Zero values fall back to the
// package defaults; DocIDs restricts the search to the given documents.
type SearchParams struct {
	OwnerID        string
	Query          string
	Limit          int
	SemanticWeight float64
	MinScore       float64
	DocIDs         []string
}

func (p *SearchParams) applyDefaults() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.SemanticWeight <= 0 {
		p.SemanticWeight = DefaultSemanticWeight
	}
	if p.MinScore <= 0 {
		p.MinScore = DefaultMinScore
	}
}

// Search runs hybrid retrieval: the final score is a weighted blend of
// cosine similarity and lexical ts_rank, and results below the score floor
// are dropped. Demo documents are visible to every owner.
func (s *Store) Search(ctx context.Context, params SearchParams) ([]common.ScoredChunk, error) {
	params.applyDefaults()

	queryEmbedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(params.Query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT
				c.id, c.doc_id, c.chunk_index, c.text, c.token_count,
				c.page_number, c.section_title, d.file_name,
				$1::float8 * (1 - (c.embedding <=> $2))
					+ (1 - $1::float8) * LEAST(ts_rank_cd(c.tsv, plainto_tsquery('english', $3)), 1.0)
					AS score
			FROM chunks c
			JOIN documents d ON d.id = c.doc_id
			WHERE (c.owner_id = $4 OR d.is_demo)
				AND ($5::text[] IS NULL OR cardinality($5::text[]) = 0 OR c.doc_id = ANY($5))
		) ranked
		WHERE score >= $6
		ORDER BY score DESC
		LIMIT $7`,
		params.SemanticWeight,
		pgvector.NewVector(queryEmbedding),
		params.Query,
		params.OwnerID,
		params.DocIDs,
		params.MinScore,
		params.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	var results []common.ScoredChunk
	for rows.Next() {
		var sc common.ScoredChunk
		err := rows.Scan(
			&sc.ID, &sc.DocID, &sc.Index, &sc.Text, &sc.Tokens,
			&sc.Page, &sc.Section, &sc.FileName, &sc.Score,
		)
		if err != nil {
			return nil, err
		}
		sc.Source = common.SourceVector
		results = append(results, sc)
	}
	return results, rows.Err()
}

// FirstChunks returns the first n chunks of a document in reading order,
// used to pull context from related documents.
func (s *Store) FirstChunks(ctx context.Context, docID string, n int) ([]common.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.doc_id, c.chunk_index, c.text, c.token_count,
			c.page_number, c.section_title, d.file_name
		FROM chunks c
		JOIN documents d ON d.id = c.doc_id
		WHERE c.doc_id = $1
		ORDER BY c.chunk_index ASC
		LIMIT $2`,
		docID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch document chunks: %w", err)
	}
	defer rows.Close()

	var results []common.ScoredChunk
	for rows.Next() {
		var sc common.ScoredChunk
		err := rows.Scan(
			&sc.ID, &sc.DocID, &sc.Index, &sc.Text, &sc.Tokens,
			&sc.Page, &sc.Section, &sc.FileName,
		)
		if err != nil {
			return nil, err
		}
		sc.Source = common.SourceRelationship
		results = append(results, sc)
	}
	return results, rows.Err()
}
