package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrNotFound = errors.New("document not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const documentColumns = `
	id, owner_id, file_name, file_size, content_type, status, stage,
	error_message, page_count, chunk_count, entity_count, relationship_count,
	is_demo, processing_log, created_at, updated_at`

// Create inserts a new pending document and fills in its generated id.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate document id: %w", err)
		}
		doc.ID = id
	}
	doc.Status = StatusPending

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, owner_id, file_name, file_size, content_type, status, is_demo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.OwnerID, doc.FileName, doc.FileSize, doc.ContentType, doc.Status, doc.IsDemo,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID loads a document regardless of owner. Used by the worker.
func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// GetForOwner loads a document visible to the given owner: their own or a
// demo document.
func (s *Store) GetForOwner(ctx context.Context, id string, ownerID string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND (owner_id = $2 OR is_demo)`,
		id, ownerID,
	)
	return scanDocument(row)
}

// List returns all documents visible to the owner, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE owner_id = $1 OR is_demo
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// logEntryJSON renders a single log entry as the jsonb array payload that
// gets appended to processing_log. The timestamp is filled in here.
func logEntryJSON(entry LogEntry) ([]byte, error) {
	entry.Time = time.Now().UTC()
	return json.Marshal([]LogEntry{entry})
}

// SetStage moves a processing document to the given stage and appends a
// processing log entry.
func (s *Store) SetStage(ctx context.Context, id string, stage Stage, message string) error {
	entry, err := logEntryJSON(LogEntry{Stage: stage, Message: message})
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, stage = $3,
			processing_log = processing_log || $4::jsonb,
			updated_at = now()
		WHERE id = $1`,
		id, StatusProcessing, stage, entry,
	)
	if err != nil {
		return fmt.Errorf("update document stage: %w", err)
	}
	return nil
}

// AppendStageError records a non-fatal stage failure on the processing log
// without changing the document status. The pipeline uses it for stages
// that degrade instead of failing the document.
func (s *Store) AppendStageError(ctx context.Context, id string, stage Stage, stageErr error) error {
	entry, err := logEntryJSON(LogEntry{Stage: stage, Message: "stage skipped", Error: stageErr.Error()})
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE documents
		SET processing_log = processing_log || $2::jsonb, updated_at = now()
		WHERE id = $1`,
		id, entry,
	)
	if err != nil {
		return fmt.Errorf("append processing log: %w", err)
	}
	return nil
}

// SetCompleted marks a document done and records the pipeline counts.
func (s *Store) SetCompleted(ctx context.Context, id string, pages, chunks, entities, relationships int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, stage = '', error_message = '',
			page_count = $3, chunk_count = $4, entity_count = $5, relationship_count = $6,
			updated_at = now()
		WHERE id = $1`,
		id, StatusCompleted, pages, chunks, entities, relationships,
	)
	if err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	return nil
}

// SetFailed marks a document failed, keeping the stage it failed in.
func (s *Store) SetFailed(ctx context.Context, id string, message string) error {
	entry, err := logEntryJSON(LogEntry{Message: "processing failed", Error: message})
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, error_message = $3,
			processing_log = processing_log || $4::jsonb,
			updated_at = now()
		WHERE id = $1`,
		id, StatusFailed, message, entry,
	)
	if err != nil {
		return fmt.Errorf("fail document: %w", err)
	}
	return nil
}

// SetPageCount records the page count as soon as parsing knows it, so
// progress estimates stop using the fallback.
func (s *Store) SetPageCount(ctx context.Context, id string, pages int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET page_count = $2, updated_at = now() WHERE id = $1`,
		id, pages,
	)
	if err != nil {
		return fmt.Errorf("update page count: %w", err)
	}
	return nil
}

// Delete removes the document row. Chunk and graph cleanup is handled by
// their stores.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CorpusRef is the minimal view of an ingested document used for cross
// reference detection.
type CorpusRef struct {
	ID       string
	FileName string
}

// CompletedRefs lists completed documents of an owner, including demo
// documents.
func (s *Store) CompletedRefs(ctx context.Context, ownerID string) ([]CorpusRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name
		FROM documents
		WHERE (owner_id = $1 OR is_demo) AND status = $2`,
		ownerID, StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}
	defer rows.Close()

	var refs []CorpusRef
	for rows.Next() {
		var ref CorpusRef
		if err := rows.Scan(&ref.ID, &ref.FileName); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// MarkStaleFailed fails documents stuck in processing longer than the
// given age. Called at worker startup to clean up after crashes.
func (s *Store) MarkStaleFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, error_message = 'processing interrupted', updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3::interval`,
		StatusFailed, StatusProcessing, fmt.Sprintf("%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	var logRaw []byte
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.FileName, &doc.FileSize, &doc.ContentType,
		&doc.Status, &doc.Stage, &doc.ErrorMessage, &doc.PageCount,
		&doc.ChunkCount, &doc.EntityCount, &doc.RelationshipCount,
		&doc.IsDemo, &logRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if len(logRaw) > 0 {
		if err := json.Unmarshal(logRaw, &doc.ProcessingLog); err != nil {
			return nil, fmt.Errorf("decode processing log: %w", err)
		}
	}
	return &doc, nil
}
