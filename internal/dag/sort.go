// Package dag implements the patch graph's topological sort.
//
// The sort is the only piece of the engine that reasons about graph shape
// in isolation from execution; everything else (internal/runtime) consumes
// its output as a flat, ordered list of node ids.
package dag

import "github.com/gearforge/gearforge/internal/errs"

// Edge is the minimal shape the sorter needs: a directed dependency from
// Source to Target. internal/patch.Edge satisfies this by field name.
type Edge struct {
	Source string
	Target string
}

// Sort computes a deterministic topological order over ids given edges,
// using Kahn's algorithm with a FIFO queue. The queue is seeded with the
// zero-indegree nodes in their order in ids; a node that becomes ready
// later is appended when its last incoming edge is processed, so it is
// not reordered by its position in ids. The same (ids, edges) always
// yields the same order.
//
// Returns an *errs.Error with Kind errs.CycleDetected if the edge set is
// not acyclic (the emitted order is shorter than len(ids)).
func Sort(ids []string, edges []Edge) ([]string, error) {
	indegree := make(map[string]int, len(ids))
	adj := make(map[string][]string, len(ids))
	position := make(map[string]int, len(ids))
	for i, id := range ids {
		indegree[id] = 0
		position[id] = i
	}
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		indegree[e.Target]++
	}

	// Seed the queue with zero-indegree nodes in input order so the sort
	// is stable regardless of map iteration order.
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		// Targets reached from n, in edge-list order, become eligible as
		// soon as their indegree hits zero; append keeps the queue stable.
		for _, target := range adj[n] {
			indegree[target]--
			if indegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if len(order) < len(ids) {
		return nil, errs.New(errs.CycleDetected, "patch edges do not form a DAG")
	}
	return order, nil
}
