// Package store persists the knowledge graph in Postgres. Entities are
// deduplicated per owner by canonical name; relationships and document
// associations are tracked per document so deleting a document removes
// exactly its contribution.
package store

import (
	"context"
	"fmt"

	"docgraph/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// traversal bounds for Subgraph
	minDepth           = 1
	maxDepth           = 3
	maxNodes           = 50
	minRelatedStrength = 0.5 // floor for RelatedDocuments
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveDocumentGraph replaces a document's graph contribution in one
// transaction: mentions and relationships from earlier ingestions of the
// same document are removed first, so re-ingestion is idempotent.
func (s *Store) SaveDocumentGraph(
	ctx context.Context,
	ownerID string,
	docID string,
	entities []common.Entity,
	relationships []common.Relationship,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin graph transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteDocumentGraph(ctx, tx, docID); err != nil {
		return err
	}

	ids, err := upsertEntities(ctx, tx, ownerID, docID, entities)
	if err != nil {
		return err
	}
	if err := insertRelationships(ctx, tx, ownerID, docID, relationships, ids); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// upsertEntities inserts or refreshes entities and records their mention in
// the document. Returns canonical name to entity id.
func upsertEntities(
	ctx context.Context,
	tx pgx.Tx,
	ownerID string,
	docID string,
	entities []common.Entity,
) (map[string]string, error) {
	ids := make(map[string]string, len(entities))

	for _, entity := range entities {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate entity id: %w", err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO entities (id, owner_id, name, type, description, parent)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (owner_id, name) DO UPDATE SET
				type = EXCLUDED.type,
				description = CASE
					WHEN length(EXCLUDED.description) > length(entities.description)
					THEN EXCLUDED.description
					ELSE entities.description
				END,
				parent = CASE
					WHEN EXCLUDED.parent <> '' THEN EXCLUDED.parent
					ELSE entities.parent
				END
			RETURNING id`,
			id, ownerID, entity.Name, entity.Type, entity.Description, entity.Parent,
		)
		var entityID string
		if err := row.Scan(&entityID); err != nil {
			return nil, fmt.Errorf("upsert entity %q: %w", entity.Name, err)
		}
		ids[entity.Name] = entityID

		// one mention row per source chunk keeps chunk-level provenance;
		// entities without chunk ids still get a document-level row
		chunks := entity.Chunks
		if len(chunks) == 0 {
			chunks = []string{""}
		}
		for _, chunkID := range chunks {
			_, err = tx.Exec(ctx, `
				INSERT INTO entity_mentions (entity_id, doc_id, chunk_id)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`,
				entityID, docID, chunkID,
			)
			if err != nil {
				return nil, fmt.Errorf("record entity mention: %w", err)
			}
		}
	}

	return ids, nil
}

// insertRelationships stores edges whose endpoints both resolved to stored
// entities. Edges with a missing endpoint are silently skipped.
func insertRelationships(
	ctx context.Context,
	tx pgx.Tx,
	ownerID string,
	docID string,
	relationships []common.Relationship,
	entityIDs map[string]string,
) error {
	for _, rel := range relationships {
		sourceID, ok := entityIDs[rel.Source]
		if !ok {
			continue
		}
		targetID, ok := entityIDs[rel.Target]
		if !ok {
			continue
		}

		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate relationship id: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (id, owner_id, doc_id, source_id, target_id, type, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (doc_id, source_id, target_id, type) DO UPDATE SET
				description = EXCLUDED.description`,
			id, ownerID, docID, sourceID, targetID, rel.Type, rel.Description,
		)
		if err != nil {
			return fmt.Errorf("insert relationship %s->%s: %w", rel.Source, rel.Target, err)
		}
	}
	return nil
}

// DeleteDocument removes a document's graph contribution and any entities
// that are no longer mentioned by any document.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin graph transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteDocumentGraph(ctx, tx, docID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func deleteDocumentGraph(ctx context.Context, tx pgx.Tx, docID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM relationships WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("delete document relationships: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM entity_mentions WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("delete entity mentions: %w", err)
	}
	_, err := tx.Exec(ctx, `
		DELETE FROM entities e
		WHERE NOT EXISTS (
			SELECT 1 FROM entity_mentions m WHERE m.entity_id = e.id
		)`)
	if err != nil {
		return fmt.Errorf("delete orphaned entities: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM doc_relationships
		WHERE source_doc_id = $1 OR target_doc_id = $1`, docID); err != nil {
		return fmt.Errorf("delete document relationships: %w", err)
	}
	return nil
}

// DocumentEntities returns all entities mentioned by a document, each with
// the ids of the chunks it was extracted from.
func (s *Store) DocumentEntities(ctx context.Context, docID string) ([]common.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.name, e.type, e.description, e.parent,
			array_remove(array_agg(m.chunk_id), '') AS chunk_ids
		FROM entities e
		JOIN entity_mentions m ON m.entity_id = e.id
		WHERE m.doc_id = $1
		GROUP BY e.id, e.name, e.type, e.description, e.parent
		ORDER BY e.name`,
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("query document entities: %w", err)
	}
	defer rows.Close()

	var entities []common.Entity
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.Name, &e.Type, &e.Description, &e.Parent, &e.Chunks); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// SubgraphEdge is a resolved relationship returned by Subgraph, with entity
// names instead of ids and the traversal depth it was found at.
type SubgraphEdge struct {
	Source      string
	Target      string
	Type        string
	Description string
	DocID       string
	Depth       int
}

// Subgraph walks the graph outwards from the named seed entities up to
// depth hops and returns the edges found. Traversal stops once it has
// touched a fixed number of nodes; edges that would pull in nodes beyond
// that budget are dropped. Depth is clamped to [1, 3].
func (s *Store) Subgraph(ctx context.Context, ownerID string, seedNames []string, depth int) ([]SubgraphEdge, error) {
	if depth < minDepth {
		depth = minDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	if len(seedNames) == 0 {
		return nil, nil
	}

	frontier, err := s.entityIDsByName(ctx, ownerID, seedNames)
	if err != nil {
		return nil, err
	}

	tr := newTraversal(frontier)
	for d := 1; d <= depth && len(frontier) > 0 && tr.nodeCount() < maxNodes; d++ {
		rows, err := s.pool.Query(ctx, `
			SELECT id, source_id, target_id, type, description, doc_id
			FROM relationships
			WHERE owner_id = $1 AND (source_id = ANY($2) OR target_id = ANY($2))`,
			ownerID, frontier,
		)
		if err != nil {
			return nil, fmt.Errorf("traverse graph at depth %d: %w", d, err)
		}

		var next []string
		for rows.Next() {
			var e edge
			if err := rows.Scan(&e.id, &e.sourceID, &e.targetID, &e.relType, &e.description, &e.docID); err != nil {
				rows.Close()
				return nil, err
			}
			next = append(next, tr.admit(e, d)...)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		frontier = next
	}

	if len(tr.edges) == 0 {
		return nil, nil
	}

	// resolve entity ids to names in one batch
	ids := make([]string, 0, tr.nodeCount())
	for id := range tr.seenEntities {
		ids = append(ids, id)
	}
	names, err := s.entityNamesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SubgraphEdge, 0, len(tr.edges))
	for _, e := range tr.edges {
		out = append(out, SubgraphEdge{
			Source:      names[e.sourceID],
			Target:      names[e.targetID],
			Type:        e.relType,
			Description: e.description,
			DocID:       e.docID,
			Depth:       e.depth,
		})
	}
	return out, nil
}

type edge struct {
	id, sourceID, targetID, relType, description, docID string
	depth                                               int
}

// traversal tracks visited edges and nodes during subgraph expansion and
// enforces the node budget.
type traversal struct {
	seenEdges    map[string]struct{}
	seenEntities map[string]struct{}
	edges        []edge
}

func newTraversal(seeds []string) *traversal {
	t := &traversal{
		seenEdges:    make(map[string]struct{}),
		seenEntities: make(map[string]struct{}, len(seeds)),
	}
	for _, id := range seeds {
		t.seenEntities[id] = struct{}{}
	}
	return t
}

func (t *traversal) nodeCount() int {
	return len(t.seenEntities)
}

// admit records the edge unless it was already seen or its endpoints would
// push the traversal past the node budget. It returns the endpoint ids that
// were new, which form the next frontier.
func (t *traversal) admit(e edge, depth int) []string {
	if _, dup := t.seenEdges[e.id]; dup {
		return nil
	}
	var fresh []string
	for _, entityID := range []string{e.sourceID, e.targetID} {
		if _, ok := t.seenEntities[entityID]; !ok {
			fresh = append(fresh, entityID)
		}
	}
	if len(t.seenEntities)+len(fresh) > maxNodes {
		return nil
	}
	t.seenEdges[e.id] = struct{}{}
	e.depth = depth
	t.edges = append(t.edges, e)
	for _, entityID := range fresh {
		t.seenEntities[entityID] = struct{}{}
	}
	return fresh
}

// MatchEntities returns stored entity names matching any of the query
// terms, most mentioned first. Used to seed graph traversal from a query.
func (s *Store) MatchEntities(ctx context.Context, ownerID string, terms []string, limit int) ([]string, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.name
		FROM entities e
		WHERE e.owner_id = $1
			AND EXISTS (
				SELECT 1 FROM unnest($2::text[]) t
				WHERE e.name ILIKE '%' || t || '%'
			)
		ORDER BY (SELECT count(*) FROM entity_mentions m WHERE m.entity_id = e.id) DESC
		LIMIT $3`,
		ownerID, terms, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) entityIDsByName(ctx context.Context, ownerID string, names []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM entities WHERE owner_id = $1 AND name = ANY($2)`,
		ownerID, names,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve entity names: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) entityNamesByID(ctx context.Context, ids []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name FROM entities WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve entity ids: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// SaveDocRelationships replaces the stored cross-document relationships
// originating from a source document.
func (s *Store) SaveDocRelationships(ctx context.Context, ownerID string, sourceDocID string, rels []common.DocRelationship) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin graph transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM doc_relationships WHERE source_doc_id = $1`, sourceDocID); err != nil {
		return fmt.Errorf("clear document relationships: %w", err)
	}

	for _, rel := range rels {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate relationship id: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO doc_relationships (id, owner_id, source_doc_id, target_doc_id, type, strength, evidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, ownerID, rel.SourceDocID, rel.TargetDocID, rel.Type, rel.Strength, rel.Evidence,
		)
		if err != nil {
			return fmt.Errorf("insert document relationship: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RelatedDocuments returns documents related to docID in either direction
// with strength at or above 0.5, strongest first.
func (s *Store) RelatedDocuments(ctx context.Context, docID string) ([]common.DocRelationship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_doc_id, target_doc_id, type, strength, evidence
		FROM doc_relationships
		WHERE (source_doc_id = $1 OR target_doc_id = $1) AND strength >= $2
		ORDER BY strength DESC`,
		docID, minRelatedStrength,
	)
	if err != nil {
		return nil, fmt.Errorf("query related documents: %w", err)
	}
	defer rows.Close()

	var rels []common.DocRelationship
	for rows.Next() {
		var r common.DocRelationship
		if err := rows.Scan(&r.SourceDocID, &r.TargetDocID, &r.Type, &r.Strength, &r.Evidence); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
