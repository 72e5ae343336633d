package dag

import (
	"testing"

	"github.com/gearforge/gearforge/internal/errs"
)

func TestSort_Linear(t *testing.T) {
	order, err := Sort([]string{"a", "b", "c"}, []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestSort_NoEdges_PreservesInputOrder(t *testing.T) {
	order, err := Sort([]string{"z", "a", "m"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"z", "a", "m"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestSort_FanIn_Deterministic(t *testing.T) {
	ids := []string{"a", "b", "c"}
	edges := []Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}}
	order1, err := Sort(ids, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order2, err := Sort(ids, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range order1 {
		if order1[i] != order2[i] {
			t.Fatalf("sort is not deterministic: %v vs %v", order1, order2)
		}
	}
	if order1[2] != "c" {
		t.Fatalf("c must be last, got %v", order1)
	}
}

func TestSort_Cycle(t *testing.T) {
	_, err := Sort([]string{"a", "b"}, []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}})
	if err == nil {
		t.Fatal("expected CycleDetected error")
	}
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.CycleDetected {
		t.Fatalf("expected CycleDetected kind, got %v", err)
	}
}

func TestSort_EmptyGraph(t *testing.T) {
	order, err := Sort(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected empty order, got %v", order)
	}
}

func TestSort_SelfLoop(t *testing.T) {
	_, err := Sort([]string{"a"}, []Edge{{Source: "a", Target: "a"}})
	if err == nil {
		t.Fatal("expected CycleDetected error for self-loop")
	}
}
