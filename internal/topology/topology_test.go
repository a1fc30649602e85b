package topology

import (
	"math"
	"testing"
)

func TestCentroidGrouperOpensAndReuses(t *testing.T) {
	g := NewCentroidGrouper(1.0)

	first, ok := g.ClosestGroup([][]float64{{0, 0}})
	if !ok || first == "" {
		t.Fatal("expected a group for the first batch")
	}

	same, ok := g.ClosestGroup([][]float64{{0.2, 0.1}})
	if !ok || same != first {
		t.Errorf("nearby batch routed to %q, want %q", same, first)
	}

	far, ok := g.ClosestGroup([][]float64{{10, 10}})
	if !ok {
		t.Fatal("expected a group for the far batch")
	}
	if far == first {
		t.Error("distant batch must open a new group")
	}

	back, ok := g.ClosestGroup([][]float64{{0.1, 0.1}})
	if !ok || back != first {
		t.Errorf("returning batch routed to %q, want %q", back, first)
	}
}

func TestClosestGroupAveragesBatch(t *testing.T) {
	g := NewCentroidGrouper(1.0)
	// The batch mean (0.5, 0.5) seeds the first centroid.
	id, ok := g.ClosestGroup([][]float64{{0, 0}, {1, 1}})
	if !ok {
		t.Fatal("expected a group")
	}

	protos := g.Prototypes(id)
	if len(protos) != 1 {
		t.Fatalf("got %d prototypes, want 1", len(protos))
	}
	if math.Abs(protos[0][0]-0.5) > 1e-9 || math.Abs(protos[0][1]-0.5) > 1e-9 {
		t.Errorf("prototype = %v, want (0.5, 0.5)", protos[0])
	}
}

func TestClosestGroupEmptyBatch(t *testing.T) {
	g := NewCentroidGrouper(1.0)
	if _, ok := g.ClosestGroup(nil); ok {
		t.Error("empty batch must not resolve to a group")
	}
}

func TestPrototypesUnknownGroup(t *testing.T) {
	g := NewCentroidGrouper(1.0)
	if protos := g.Prototypes("nope"); protos != nil {
		t.Errorf("expected nil prototypes, got %v", protos)
	}
}
