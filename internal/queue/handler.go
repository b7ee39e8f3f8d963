package queue

import (
	"context"
	"time"

	"docgraph/pkg/logger"
)

const staleProcessingAge = 30 * time.Minute

// RecoverStaleDocuments fails documents left in processing by a crashed
// worker. Called once at worker startup; the retry queues handle transient
// failures, this handles the worker dying mid-document.
func (p *Processor) RecoverStaleDocuments(ctx context.Context) error {
	count, err := p.docStore.MarkStaleFailed(ctx, staleProcessingAge)
	if err != nil {
		return err
	}
	if count == 0 {
		logger.Debug("[Queue] No stale documents found")
		return nil
	}
	logger.Info("[Queue] Marked stale documents as failed", "count", count)
	return nil
}
