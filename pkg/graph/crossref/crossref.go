// Package crossref detects relationships between documents: explicit
// citations found in the text, and implicit links through shared graph
// entities. Citation targets are matched against corpus filenames with
// fuzzy comparison since documents rarely cite each other by exact
// filename.
package crossref

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"docgraph/pkg/common"
)

const (
	explicitStrength    = 1.0
	sharedBaseStrength  = 0.5
	sharedStepStrength  = 0.1
	sharedMaxStrength   = 0.9
	minSharedEntities   = 2
	maxEvidence         = 10
	levenshteinMinRatio = 0.7
	containmentMinRatio = 0.8
)

var (
	docCodePattern = regexp.MustCompile(`\b[A-Z]{2,}-[\d.]+\b`)

	seeDocPattern = regexp.MustCompile(
		`(?im)\b(?:see|refer to|described in|detailed in|defined in|specified in)\s+(?:the\s+)?(?:document\s+)?"?([A-Za-z][A-Za-z0-9 _\-.]{2,60}?)"?(?:\s+for\b|[.,;:)]|$)`)

	sectionRefPattern = regexp.MustCompile(
		`(?im)\b(?:section|chapter|appendix)\s+[\dA-Za-z][\d.]*\s+(?:of|in)\s+(?:the\s+)?"?([A-Za-z][A-Za-z0-9 _\-.]{2,60}?)"?(?:[.,;:)]|$)`)
)

// DocumentRef is the corpus view the detector works on: one entry per
// already ingested document.
type DocumentRef struct {
	ID       string
	FileName string
	Entities []string
}

// Detect finds relationships from the given document to the rest of the
// corpus. Explicit citations win over shared entities: when both exist for
// the same target only the citation is reported.
func Detect(doc DocumentRef, text string, corpus []DocumentRef) []common.DocRelationship {
	var rels []common.DocRelationship
	cited := make(map[string]struct{})

	citations := findCitations(text)
	for _, other := range corpus {
		if other.ID == doc.ID {
			continue
		}
		var evidence []string
		for _, c := range citations {
			if matchesFileName(c, other.FileName) {
				evidence = append(evidence, c)
			}
		}
		if len(evidence) == 0 {
			continue
		}
		if len(evidence) > maxEvidence {
			evidence = evidence[:maxEvidence]
		}
		cited[other.ID] = struct{}{}
		rels = append(rels, common.DocRelationship{
			SourceDocID: doc.ID,
			TargetDocID: other.ID,
			Type:        common.DocRelExplicitCitation,
			Strength:    explicitStrength,
			Evidence:    evidence,
		})
	}

	for _, other := range corpus {
		if other.ID == doc.ID {
			continue
		}
		if _, hasCitation := cited[other.ID]; hasCitation {
			continue
		}
		shared := sharedEntities(doc.Entities, other.Entities)
		if len(shared) < minSharedEntities {
			continue
		}
		strength := sharedBaseStrength + float64(len(shared)-minSharedEntities)*sharedStepStrength
		if strength > sharedMaxStrength {
			strength = sharedMaxStrength
		}
		if len(shared) > maxEvidence {
			shared = shared[:maxEvidence]
		}
		rels = append(rels, common.DocRelationship{
			SourceDocID: doc.ID,
			TargetDocID: other.ID,
			Type:        common.DocRelSharedEntities,
			Strength:    strength,
			Evidence:    shared,
		})
	}

	return rels
}

// findCitations returns deduplicated citation candidates from the text:
// document codes, "see X" phrases and "section N of X" phrases.
func findCitations(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if len(candidate) < 3 {
			return
		}
		key := strings.ToLower(candidate)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	}

	for _, m := range docCodePattern.FindAllString(text, -1) {
		add(strings.TrimRight(m, "."))
	}
	for _, m := range seeDocPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range sectionRefPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

// matchesFileName reports whether a citation candidate plausibly refers to
// the given filename. Both sides are normalized and expanded before the
// fuzzy comparison so acronyms match their spelled out form.
func matchesFileName(candidate string, fileName string) bool {
	c := normalizeName(candidate)
	f := normalizeName(fileName)
	if c == "" || f == "" {
		return false
	}

	for _, a := range expandVariants(c) {
		for _, b := range expandVariants(f) {
			if fuzzyMatch(a, b) {
				return true
			}
		}
	}
	return false
}

func fuzzyMatch(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) &&
		float64(len(shorter))/float64(len(longer)) >= containmentMinRatio {
		return true
	}
	return levenshteinRatio(a, b) >= levenshteinMinRatio
}

func normalizeName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ToLower(name)
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// expandVariants returns the name itself plus variants with acronyms
// replaced by their expansion, in both directions.
func expandVariants(name string) []string {
	variants := []string{name}
	for acronym, expansion := range common.AcronymMap {
		lowerAcronym := strings.ToLower(acronym)
		lowerExpansion := strings.ToLower(expansion)
		if containsWord(name, lowerAcronym) {
			variants = append(variants, strings.ReplaceAll(name, lowerAcronym, lowerExpansion))
		}
		if strings.Contains(name, lowerExpansion) {
			variants = append(variants, strings.ReplaceAll(name, lowerExpansion, lowerAcronym))
		}
	}
	return variants
}

func containsWord(s string, word string) bool {
	for _, w := range strings.Fields(s) {
		if w == word {
			return true
		}
	}
	return false
}

// sharedEntities returns the intersection of two entity name lists, sorted
// for stable evidence output. Names are compared case-insensitively and
// through their acronym variants, so "GPS" and "Global Positioning System"
// count as the same entity.
func sharedEntities(a, b []string) []string {
	set := make(map[string]string, len(a))
	for _, name := range a {
		for _, v := range expandVariants(strings.ToLower(name)) {
			set[v] = name
		}
	}
	var shared []string
	seen := make(map[string]struct{})
	for _, name := range b {
		for _, v := range expandVariants(strings.ToLower(name)) {
			original, ok := set[v]
			if !ok {
				continue
			}
			key := strings.ToLower(original)
			if _, dup := seen[key]; dup {
				break
			}
			seen[key] = struct{}{}
			shared = append(shared, original)
			break
		}
	}
	sort.Strings(shared)
	return shared
}

// levenshteinRatio is the normalized edit similarity of two strings,
// 1 for identical and 0 for completely different.
func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(prev[len(rb)])/float64(longest)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
