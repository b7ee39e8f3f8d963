// Package docs tracks documents through the ingestion pipeline: their
// lifecycle status, the stage currently running and a processing log for
// debugging failed ingestions.
package docs

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Stage string

const (
	StageUploading       Stage = "uploading"
	StageParsing         Stage = "parsing"
	StageChunking        Stage = "chunking"
	StageGraphExtracting Stage = "graph_extracting"
	StageIndexing        Stage = "indexing"
)

// stageOrder is the pipeline order used for progress computation.
var stageOrder = []Stage{
	StageUploading,
	StageParsing,
	StageChunking,
	StageGraphExtracting,
	StageIndexing,
}

// LogEntry is one line of the per-document processing log. Error carries
// the failure of a non-fatal stage so skipped work stays visible on the
// document even though processing continued.
type LogEntry struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

type Document struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	FileName          string     `json:"file_name"`
	FileSize          int64      `json:"file_size"`
	ContentType       string     `json:"content_type"`
	Status            Status     `json:"status"`
	Stage             Stage      `json:"stage,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	PageCount         int        `json:"page_count"`
	ChunkCount        int        `json:"chunk_count"`
	EntityCount       int        `json:"entity_count"`
	RelationshipCount int        `json:"relationship_count"`
	IsDemo            bool       `json:"is_demo"`
	ProcessingLog     []LogEntry `json:"processing_log,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
