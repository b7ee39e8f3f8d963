package store

import (
	"fmt"
	"testing"
)

func TestTraversalCapsNodeCount(t *testing.T) {
	tr := newTraversal([]string{"seed"})
	for i := 0; i < 2*maxNodes; i++ {
		tr.admit(edge{
			id:       fmt.Sprintf("e%d", i),
			sourceID: "seed",
			targetID: fmt.Sprintf("n%d", i),
		}, 1)
	}
	if tr.nodeCount() != maxNodes {
		t.Errorf("node count = %d, want %d", tr.nodeCount(), maxNodes)
	}
	if len(tr.edges) != maxNodes-1 {
		t.Errorf("edges = %d, want %d", len(tr.edges), maxNodes-1)
	}
}

func TestTraversalKeepsEdgesBetweenSeenNodes(t *testing.T) {
	tr := newTraversal([]string{"a", "b"})
	for i := 0; tr.nodeCount() < maxNodes; i++ {
		tr.admit(edge{id: fmt.Sprintf("f%d", i), sourceID: "a", targetID: fmt.Sprintf("n%d", i)}, 1)
	}

	before := len(tr.edges)
	tr.admit(edge{id: "inside", sourceID: "a", targetID: "b"}, 2)
	if len(tr.edges) != before+1 {
		t.Error("edge between already seen nodes was rejected")
	}
	tr.admit(edge{id: "overflow", sourceID: "a", targetID: "one too many"}, 2)
	if len(tr.edges) != before+1 {
		t.Error("edge past the node budget was admitted")
	}
}

func TestTraversalSkipsDuplicateEdges(t *testing.T) {
	tr := newTraversal([]string{"a"})
	tr.admit(edge{id: "e1", sourceID: "a", targetID: "b"}, 1)
	if fresh := tr.admit(edge{id: "e1", sourceID: "a", targetID: "b"}, 2); fresh != nil {
		t.Errorf("duplicate edge produced frontier %v", fresh)
	}
	if len(tr.edges) != 1 {
		t.Errorf("edges = %d, want 1", len(tr.edges))
	}
}
