// Package runtime implements the patch execution engine: it resolves
// per-node input, dispatches to local or HTTP executors in topological
// order, and emits a lazy, typed event sequence.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/gearforge/gearforge/internal/dag"
	"github.com/gearforge/gearforge/internal/errs"
	"github.com/gearforge/gearforge/internal/patch"
	"github.com/gearforge/gearforge/internal/registry"
	"github.com/gearforge/gearforge/internal/urlguard"
)

// Engine executes PatchDefinitions. It is safe for concurrent Run calls:
// each run owns its own outputs map for its duration, and the
// Registry/Guard/HTTPClient collaborators are read-only from the
// engine's perspective after construction.
type Engine struct {
	Registry   *registry.Registry
	Guard      *urlguard.Guard
	HTTPClient *http.Client

	// Sinks receive a copy of every event this engine emits, across every
	// run, in addition to the per-run channel Run returns.
	Sinks []Sink

	// DevMode includes Go stack traces in NodeError.Err.Stack.
	DevMode bool
}

// New returns an Engine ready to run patches.
func New(reg *registry.Registry, guard *urlguard.Guard) *Engine {
	return &Engine{
		Registry:   reg,
		Guard:      guard,
		HTTPClient: &http.Client{},
	}
}

// Run executes def against initialInput and returns a channel of Events.
// The channel is closed after RunComplete, whether the run succeeded or
// stopped at a NodeError.
//
// Errors that occur before execution starts (invalid definition, cycle)
// are NOT wrapped in an event stream at all. Run returns them directly
// so the HTTP layer can choose a 4xx response instead of opening an SSE
// stream. Errors that occur once execution starts are delivered as a
// NodeError event followed by RunComplete; Run itself returns a nil error
// in that case, since the stream is the contract.
func (e *Engine) Run(ctx context.Context, def *patch.Definition, initialInput any) (<-chan Event, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	order, err := dag.Sort(def.NodeIDs(), def.DAGEdges())
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	events := make(chan Event, 4)

	go e.execute(ctx, def, order, initialInput, runID, events)

	return events, nil
}

func (e *Engine) execute(ctx context.Context, def *patch.Definition, order []string, initialInput any, runID string, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) {
		events <- ev
		for _, sink := range e.Sinks {
			sink.Observe(ev)
		}
	}

	emit(Event{Type: RunStart, RunID: runID, Ts: now()})

	outputs := make(map[string]any, len(order))

	for _, nodeID := range order {
		node, _ := def.NodeByID(nodeID)
		input := e.resolveInput(def, nodeID, initialInput, outputs)

		emit(Event{Type: NodeStart, RunID: runID, NodeID: nodeID, Ts: now(), Input: input})

		output, err := e.dispatch(ctx, node, input)
		if err != nil {
			emit(Event{Type: NodeError, RunID: runID, NodeID: nodeID, Ts: now(), Err: e.errorInfo(err)})
			emit(Event{Type: RunComplete, RunID: runID, Ts: now()})
			return
		}

		outputs[nodeID] = output
		emit(Event{Type: NodeSuccess, RunID: runID, NodeID: nodeID, Ts: now(), Output: output})
	}

	emit(Event{Type: RunComplete, RunID: runID, Ts: now()})
}

// resolveInput computes a node's input: zero incoming edges yields the
// run's initial input, one incoming edge yields that source's stored
// output, and two-or-more yields the ordered list of source outputs in
// edge-list order.
func (e *Engine) resolveInput(def *patch.Definition, nodeID string, initialInput any, outputs map[string]any) any {
	incoming := def.IncomingEdges(nodeID)
	switch len(incoming) {
	case 0:
		return initialInput
	case 1:
		return outputs[incoming[0].Source]
	default:
		fanin := make([]any, len(incoming))
		for i, e := range incoming {
			fanin[i] = outputs[e.Source]
		}
		return fanin
	}
}

func (e *Engine) dispatch(ctx context.Context, node patch.Node, input any) (any, error) {
	switch node.Kind {
	case patch.Local:
		fn, err := e.Registry.Lookup(node.Fn)
		if err != nil {
			return nil, err
		}
		return fn(ctx, input)
	case patch.HTTP:
		return e.dispatchHTTP(ctx, node.URL, input)
	default:
		return nil, errs.New(errs.InvalidPatch, "unknown node kind: "+string(node.Kind))
	}
}

func (e *Engine) dispatchHTTP(ctx context.Context, rawURL string, input any) (any, error) {
	parsed, err := e.Guard.ValidateHTTPURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	deadline := urlguard.WithTimeout(ctx, urlguard.DefaultTimeout)
	defer deadline.Cancel()

	body, err := json.Marshal(input)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidPatch, "failed to marshal node input", err)
	}

	req, err := http.NewRequestWithContext(deadline.Ctx, http.MethodPost, parsed.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.InvalidURL, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if deadline.Ctx.Err() != nil {
			return nil, errs.Wrap(errs.Timeout, "http node exceeded deadline", err)
		}
		return nil, errs.Wrap(errs.HTTPStatus, "http node request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.HTTPStatus, "failed to read http node response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.HTTPStatusErr(resp.StatusCode, fmt.Sprintf("http node returned %d", resp.StatusCode))
	}

	var out any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, errs.Wrap(errs.HTTPStatus, "http node response was not valid JSON", err)
		}
	}
	return out, nil
}

func (e *Engine) errorInfo(err error) *ErrorInfo {
	info := &ErrorInfo{Message: err.Error()}
	if e.DevMode {
		info.Stack = string(debug.Stack())
	}
	return info
}

// now is a var so tests can pin it; production uses wall-clock time.
var now = func() time.Time { return time.Now().UTC() }
