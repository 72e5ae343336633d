// Package patch defines the patch data model: nodes, edges, and the
// PatchDefinition aggregate, plus the structural validation the engine
// runs before it attempts a topological sort.
package patch

import (
	"encoding/json"
	"time"

	"github.com/gearforge/gearforge/internal/dag"
	"github.com/gearforge/gearforge/internal/errs"
)

// Kind distinguishes a locally dispatched node from a remote HTTP one.
type Kind string

const (
	// Local nodes invoke a function registered in internal/registry.
	Local Kind = "local"
	// HTTP nodes POST their input to a remote URL and parse the JSON reply.
	HTTP Kind = "http"
)

// Node is a vertex in a patch graph.
//
// Invariant: Kind == Local implies Fn is set and registered; Kind == HTTP
// implies URL is set and accepted by the URL guard. Nodes are immutable
// for the lifetime of a patch revision.
type Node struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Fn   string `json:"fn,omitempty"`
	URL  string `json:"url,omitempty"`

	// GearID links this node to a Gear when the patch editor wired a node
	// to gear-backed state. Empty for nodes with no associated gear.
	GearID string `json:"gearId,omitempty"`
}

// Edge is a directed dependency between two node ids. Multi-edges between
// the same pair are permitted and ordered by position in the edge list.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Definition is the patch value object: a DAG of nodes plus metadata.
// Executing a Definition produces no in-place mutation of it.
type Definition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks structural invariants: node ids unique, every edge
// references known nodes. It does not check for cycles; that is
// internal/dag.Sort's job once structure is sound.
func (d *Definition) Validate() error {
	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return errs.New(errs.InvalidPatch, "node id must not be empty")
		}
		if _, dup := seen[n.ID]; dup {
			return errs.New(errs.InvalidPatch, "duplicate node id: "+n.ID)
		}
		seen[n.ID] = struct{}{}

		switch n.Kind {
		case Local:
			if n.Fn == "" {
				return errs.New(errs.InvalidPatch, "local node "+n.ID+" missing fn")
			}
		case HTTP:
			if n.URL == "" {
				return errs.New(errs.InvalidPatch, "http node "+n.ID+" missing url")
			}
		default:
			return errs.New(errs.InvalidPatch, "node "+n.ID+" has unknown kind: "+string(n.Kind))
		}
	}
	for _, e := range d.Edges {
		if _, ok := seen[e.Source]; !ok {
			return errs.New(errs.InvalidPatch, "edge references unknown source: "+e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return errs.New(errs.InvalidPatch, "edge references unknown target: "+e.Target)
		}
	}
	return nil
}

// NodeIDs returns node ids in their original, authored order, the order
// in which internal/dag.Sort seeds its queue with zero-indegree nodes.
func (d *Definition) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// DAGEdges adapts patch edges to the dag package's minimal Edge shape.
func (d *Definition) DAGEdges() []dag.Edge {
	out := make([]dag.Edge, len(d.Edges))
	for i, e := range d.Edges {
		out[i] = dag.Edge{Source: e.Source, Target: e.Target}
	}
	return out
}

// NodeByID returns the node with the given id and whether it was found.
func (d *Definition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// IncomingEdges returns, in edge-list order, the edges whose Target is id.
func (d *Definition) IncomingEdges(id string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// MarshalForStorage renders the definition as the opaque JSON value stored
// under key "patch:<id>" by internal/storage.
func (d *Definition) MarshalForStorage() ([]byte, error) {
	return json.Marshal(d)
}

// FromStorage parses the bytes previously produced by MarshalForStorage.
func FromStorage(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errs.Wrap(errs.BadRequest, "stored patch definition is not valid JSON", err)
	}
	return &d, nil
}
