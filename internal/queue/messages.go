package queue

// QueueIngestMsg asks the worker to run the ingestion pipeline for an
// uploaded document.
type QueueIngestMsg struct {
	DocID   string `json:"doc_id"`
	OwnerID string `json:"owner_id"`
}

// QueueDeleteMsg asks the worker to remove a document and everything
// derived from it.
type QueueDeleteMsg struct {
	DocID string `json:"doc_id"`
}
