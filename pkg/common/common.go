// Package common holds the data types shared between the segmentation,
// indexing, graph and retrieval layers.
package common

// Chunk is a single retrievable segment of a document.
type Chunk struct {
	ID      string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Index   int    `json:"chunk_index"`
	Text    string `json:"text"`
	Tokens  int    `json:"token_count"`
	Page    int    `json:"page_number"`
	Section string `json:"section_title"`
}

// ScoredChunk is a chunk annotated with retrieval metadata. Entities names
// the graph entities a pseudo-chunk was rendered from; it is empty for
// chunks that came out of the index.
type ScoredChunk struct {
	Chunk
	FileName string   `json:"file_name"`
	Score    float64  `json:"score"`
	Source   string   `json:"source"`
	Entities []string `json:"entities,omitempty"`
}

// Retrieval sources.
const (
	SourceVector       = "vector"
	SourceGraph        = "graph"
	SourceRelationship = "relationship"
)

// Entity is a node extracted from a document. An entity is a piece of
// hardware, a software component, a configuration item or an error
// condition described by the document. Parent names the larger entity
// this one is a component of, when the text states that containment.
// Chunks lists the ids of the chunks the entity was extracted from; it
// is filled during extraction, not by the model.
type Entity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Parent      string   `json:"parent,omitempty" jsonschema_description:"Name of the parent entity when this entity is a component of a larger one, empty otherwise"`
	Chunks      []string `json:"-"`
}

// Relationship is a directed edge between two entities of the same document.
type Relationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Entity types recognized by the extraction taxonomy.
const (
	EntityHardware      = "hardware"
	EntitySoftware      = "software"
	EntityConfiguration = "configuration"
	EntityError         = "error"
)

// Relationship types recognized by the extraction taxonomy.
const (
	RelDependsOn  = "depends_on"
	RelConfigures = "configures"
	RelConnectsTo = "connects_to"
	RelIsPartOf   = "is_part_of"
)

// DocRelationship is a typed edge between two documents.
type DocRelationship struct {
	SourceDocID string   `json:"source_doc_id"`
	TargetDocID string   `json:"target_doc_id"`
	Type        string   `json:"type"`
	Strength    float64  `json:"strength"`
	Evidence    []string `json:"evidence"`
}

// Document relationship types. An explicit citation is a textual reference
// from one document to another; shared entities link documents that mention
// the same extracted entities.
const (
	DocRelExplicitCitation = "explicit_citation"
	DocRelSharedEntities   = "shared_entities"
)
