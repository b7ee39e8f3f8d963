package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docgraph/internal/docs"
	"docgraph/internal/storage"
	"docgraph/pkg/logger"
)

// ProcessDeleteMessage removes a document and everything derived from it:
// indexed chunks, its knowledge graph contribution, stored files and
// finally the document row. Each step is attempted even if an earlier one
// fails so a partial failure leaves as little behind as possible.
func (p *Processor) ProcessDeleteMessage(ctx context.Context, msg string) error {
	data := new(QueueDeleteMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	var errs []error

	if err := p.index.DeleteDocument(ctx, data.DocID); err != nil {
		errs = append(errs, fmt.Errorf("delete indexed chunks: %w", err))
	}
	if err := p.graph.DeleteDocument(ctx, data.DocID); err != nil {
		errs = append(errs, fmt.Errorf("delete graph data: %w", err))
	}
	if err := storage.DeleteFolder(ctx, p.s3Client, storage.DocumentPrefix(data.DocID)); err != nil {
		errs = append(errs, fmt.Errorf("delete stored files: %w", err))
	}

	err := p.docStore.Delete(ctx, data.DocID)
	if err != nil && !errors.Is(err, docs.ErrNotFound) {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("[Queue] Document deleted", "doc_id", data.DocID)
	return nil
}
