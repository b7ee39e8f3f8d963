// Package graph extracts a knowledge graph from document chunks. Entities
// and relationships follow a small fixed taxonomy aimed at technical
// documentation: hardware, software, configuration items and error
// conditions, connected by dependency and composition edges.
package graph

import (
	"strings"

	"docgraph/pkg/common"
)

var entityTypes = map[string]struct{}{
	common.EntityHardware:      {},
	common.EntitySoftware:      {},
	common.EntityConfiguration: {},
	common.EntityError:         {},
}

var relationshipTypes = map[string]struct{}{
	common.RelDependsOn:  {},
	common.RelConfigures: {},
	common.RelConnectsTo: {},
	common.RelIsPartOf:   {},
}

// ValidEntityType reports whether t is part of the taxonomy.
func ValidEntityType(t string) bool {
	_, ok := entityTypes[t]
	return ok
}

// ValidRelationshipType reports whether t is part of the taxonomy.
func ValidRelationshipType(t string) bool {
	_, ok := relationshipTypes[t]
	return ok
}

// NormalizeName canonicalizes an entity name: whitespace is collapsed and
// all-lowercase names are title-cased. Mixed-case names are kept as written
// since acronyms and product names carry meaning in their casing.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return name
	}
	if name == strings.ToLower(name) {
		name = titleCase(name)
	}
	return name
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Normalize validates and canonicalizes an extraction result. Entities with
// empty names or unknown types are dropped, duplicate names are merged with
// their chunk lists unioned, and relationship endpoints and parent names
// are rewritten to the canonical names. Relationships pointing at dropped
// entities are discarded, as are parent references to unknown entities.
func Normalize(entities []common.Entity, relationships []common.Relationship) ([]common.Entity, []common.Relationship) {
	canonical := make(map[string]string)
	byName := make(map[string]int)
	var outEntities []common.Entity

	for _, e := range entities {
		name := NormalizeName(e.Name)
		if name == "" || !ValidEntityType(e.Type) {
			continue
		}
		canonical[strings.ToLower(strings.TrimSpace(e.Name))] = name
		if i, dup := byName[name]; dup {
			kept := &outEntities[i]
			kept.Chunks = mergeChunks(kept.Chunks, e.Chunks)
			if kept.Parent == "" {
				kept.Parent = e.Parent
			}
			if len(e.Description) > len(kept.Description) {
				kept.Description = e.Description
			}
			continue
		}
		e.Name = name
		byName[name] = len(outEntities)
		outEntities = append(outEntities, e)
	}

	resolve := func(raw string) (string, bool) {
		if name, ok := canonical[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return name, true
		}
		name := NormalizeName(raw)
		_, ok := byName[name]
		return name, ok
	}

	for i := range outEntities {
		if outEntities[i].Parent == "" {
			continue
		}
		parent, ok := resolve(outEntities[i].Parent)
		if !ok || parent == outEntities[i].Name {
			outEntities[i].Parent = ""
			continue
		}
		outEntities[i].Parent = parent
	}

	var outRelationships []common.Relationship
	for _, r := range relationships {
		if !ValidRelationshipType(r.Type) {
			continue
		}
		source, ok := resolve(r.Source)
		if !ok {
			continue
		}
		target, ok := resolve(r.Target)
		if !ok || source == target {
			continue
		}
		r.Source = source
		r.Target = target
		outRelationships = append(outRelationships, r)
	}

	return outEntities, outRelationships
}

func mergeChunks(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, id := range append(a, b...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
