package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docgraph/internal/docs"
	"docgraph/internal/storage"
	"docgraph/pkg/ai"
	"docgraph/pkg/chunker"
	"docgraph/pkg/common"
	"docgraph/pkg/graph"
	"docgraph/pkg/graph/crossref"
	graphstore "docgraph/pkg/graph/store"
	"docgraph/pkg/index"
	"docgraph/pkg/logger"
	"docgraph/pkg/parser"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Processor wires the ingestion pipeline together. One instance serves the
// whole worker; the chunker's token encoder is shared across documents.
type Processor struct {
	s3Client  *awss3.Client
	parser    *parser.Client
	chunker   *chunker.Chunker
	extractor *graph.Extractor
	docStore  *docs.Store
	graph     *graphstore.Store
	index     *index.Store
}

type NewProcessorParams struct {
	S3Client *awss3.Client
	Parser   *parser.Client
	AIClient ai.Client

	ExtractionModel string
}

func NewProcessor(ctx context.Context, pool *pgxpool.Pool, params NewProcessorParams) (*Processor, error) {
	chk, err := chunker.New(chunker.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &Processor{
		s3Client:  params.S3Client,
		parser:    params.Parser,
		chunker:   chk,
		extractor: graph.NewExtractor(params.AIClient, params.ExtractionModel),
		docStore:  docs.NewStore(pool),
		graph:     graphstore.New(pool),
		index:     index.New(pool, params.AIClient),
	}, nil
}

// ProcessIngestMessage runs the full pipeline for one document: fetch,
// parse, chunk, graph extraction, cross referencing and indexing. Parsing,
// chunking and indexing failures fail the document; graph extraction and
// cross referencing degrade to a document without graph data.
func (p *Processor) ProcessIngestMessage(ctx context.Context, msg string) error {
	data := new(QueueIngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	doc, err := p.docStore.GetByID(ctx, data.DocID)
	if errors.Is(err, docs.ErrNotFound) {
		// deleted between upload and processing, nothing to do
		logger.Warn("[Queue] Document gone before processing", "doc_id", data.DocID)
		return nil
	}
	if err != nil {
		return err
	}

	runErr := p.runPipeline(ctx, doc)
	if runErr != nil {
		if failErr := p.docStore.SetFailed(ctx, doc.ID, runErr.Error()); failErr != nil {
			logger.Error("[Queue] Failed to mark document as failed", "doc_id", doc.ID, "err", failErr)
		}
		return runErr
	}
	return nil
}

func (p *Processor) runPipeline(ctx context.Context, doc *docs.Document) error {
	// parse
	if err := p.docStore.SetStage(ctx, doc.ID, docs.StageParsing, "parsing document"); err != nil {
		return err
	}
	parsed, err := p.parseDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	if parsed.Pages > 0 {
		if err := p.docStore.SetPageCount(ctx, doc.ID, parsed.Pages); err != nil {
			logger.Warn("[Queue] Failed to store page count", "doc_id", doc.ID, "err", err)
		}
	}

	// chunk
	if err := p.docStore.SetStage(ctx, doc.ID, docs.StageChunking, "segmenting document"); err != nil {
		return err
	}
	chunks, err := p.chunker.ChunkDocument(doc.ID, parsed)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	// graph extraction, best effort
	if err := p.docStore.SetStage(ctx, doc.ID, docs.StageGraphExtracting, "extracting knowledge graph"); err != nil {
		return err
	}
	entities, relationships := p.extractor.Extract(ctx, doc.FileName, chunks)
	if len(entities) > 0 {
		if err := p.graph.SaveDocumentGraph(ctx, doc.OwnerID, doc.ID, entities, relationships); err != nil {
			logger.Warn("[Queue] Failed to store knowledge graph", "doc_id", doc.ID, "err", err)
			p.logStageError(ctx, doc.ID, docs.StageGraphExtracting, err)
			entities, relationships = nil, nil
		}
	}
	p.detectCrossReferences(ctx, doc, parsed, entities)

	// index
	if err := p.docStore.SetStage(ctx, doc.ID, docs.StageIndexing, "indexing chunks"); err != nil {
		return err
	}
	if err := p.index.IndexChunks(ctx, doc.OwnerID, doc.ID, chunks); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	return p.docStore.SetCompleted(ctx, doc.ID, parsed.Pages, len(chunks), len(entities), len(relationships))
}

// DiscardIngestArtifacts removes the stored files of a document whose
// ingestion gave up after the last retry. Without it the uploaded original
// and the parser output would be orphaned once the message is parked in
// the dead letter queue.
func (p *Processor) DiscardIngestArtifacts(ctx context.Context, msg string) error {
	data := new(QueueIngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	if data.DocID == "" {
		return fmt.Errorf("ingest message without document id")
	}
	return storage.DeleteFolder(ctx, p.s3Client, storage.DocumentPrefix(data.DocID))
}

// parseDocument fetches the original upload, parses it and stores the
// parser output next to the original for later inspection.
func (p *Processor) parseDocument(ctx context.Context, doc *docs.Document) (*parser.Result, error) {
	raw, err := storage.GetFile(ctx, p.s3Client, storage.OriginalKey(doc.ID, doc.FileName))
	if err != nil {
		return nil, err
	}

	parsed, err := p.parser.Parse(ctx, doc.FileName, raw)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(parsed); err == nil {
		if putErr := storage.PutFile(ctx, p.s3Client, storage.ParsedKey(doc.ID), bytes.NewReader(encoded)); putErr != nil {
			logger.Warn("[Queue] Failed to store parsed output", "doc_id", doc.ID, "err", putErr)
		}
	}
	return parsed, nil
}

// detectCrossReferences links the document to the rest of the corpus. Best
// effort: any failure leaves the document without cross references.
func (p *Processor) detectCrossReferences(ctx context.Context, doc *docs.Document, parsed *parser.Result, entities []common.Entity) {
	refs, err := p.docStore.CompletedRefs(ctx, doc.OwnerID)
	if err != nil {
		logger.Warn("[Queue] Failed to load corpus for cross referencing", "doc_id", doc.ID, "err", err)
		p.logStageError(ctx, doc.ID, docs.StageGraphExtracting, err)
		return
	}

	corpus := make([]crossref.DocumentRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == doc.ID {
			continue
		}
		names, err := p.graphEntityNames(ctx, ref.ID)
		if err != nil {
			logger.Warn("[Queue] Failed to load entities for cross referencing", "doc_id", ref.ID, "err", err)
			continue
		}
		corpus = append(corpus, crossref.DocumentRef{ID: ref.ID, FileName: ref.FileName, Entities: names})
	}
	if len(corpus) == 0 {
		return
	}

	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}

	rels := crossref.Detect(crossref.DocumentRef{
		ID:       doc.ID,
		FileName: doc.FileName,
		Entities: names,
	}, parsed.Markdown, corpus)

	if err := p.graph.SaveDocRelationships(ctx, doc.OwnerID, doc.ID, rels); err != nil {
		logger.Warn("[Queue] Failed to store cross references", "doc_id", doc.ID, "err", err)
		p.logStageError(ctx, doc.ID, docs.StageGraphExtracting, err)
	}
}

// logStageError persists a degraded stage on the document's processing log.
func (p *Processor) logStageError(ctx context.Context, docID string, stage docs.Stage, stageErr error) {
	if err := p.docStore.AppendStageError(ctx, docID, stage, stageErr); err != nil {
		logger.Warn("[Queue] Failed to record stage error", "doc_id", docID, "err", err)
	}
}

func (p *Processor) graphEntityNames(ctx context.Context, docID string) ([]string, error) {
	entities, err := p.graph.DocumentEntities(ctx, docID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names, nil
}
