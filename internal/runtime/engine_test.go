package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gearforge/gearforge/internal/errs"
	"github.com/gearforge/gearforge/internal/patch"
	"github.com/gearforge/gearforge/internal/registry"
	"github.com/gearforge/gearforge/internal/urlguard"
)

func newTestEngine() *Engine {
	reg := registry.NewSeeded(nil, nil)
	guard := urlguard.New("127.0.0.1")
	return New(reg, guard)
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func TestRun_EchoChain(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID:    "p1",
		Nodes: []patch.Node{{ID: "a", Kind: patch.Local, Fn: "echoGear"}},
	}
	ch, err := e.Run(context.Background(), def, map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, ch)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != RunStart {
		t.Fatalf("expected RunStart first, got %v", events[0].Type)
	}
	if events[1].Type != NodeStart || events[1].NodeID != "a" {
		t.Fatalf("expected NodeStart{a}, got %+v", events[1])
	}
	if events[2].Type != NodeSuccess {
		t.Fatalf("expected NodeSuccess, got %+v", events[2])
	}
	out := events[2].Output.(map[string]any)
	if out["echo"] != "hi" {
		t.Fatalf("expected echo=hi, got %v", out)
	}
	if events[3].Type != RunComplete {
		t.Fatalf("expected RunComplete last, got %v", events[3].Type)
	}
}

func TestRun_TwoNodePipeline(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID: "p2",
		Nodes: []patch.Node{
			{ID: "a", Kind: patch.Local, Fn: "echoGear"},
			{ID: "b", Kind: patch.Local, Fn: "echoGear"},
		},
		Edges: []patch.Edge{{Source: "a", Target: "b"}},
	}
	ch, err := e.Run(context.Background(), def, map[string]any{"msg": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, ch)

	var bStart Event
	for _, ev := range events {
		if ev.Type == NodeStart && ev.NodeID == "b" {
			bStart = ev
		}
	}
	in := bStart.Input.(map[string]any)
	if in["echo"] != "x" {
		t.Fatalf("expected b's input to be a's output {echo:x}, got %v", in)
	}
}

func TestRun_MultiParentFanIn(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID: "p3",
		Nodes: []patch.Node{
			{ID: "a", Kind: patch.Local, Fn: "echoGear"},
			{ID: "b", Kind: patch.Local, Fn: "echoGear"},
			{ID: "c", Kind: patch.Local, Fn: "echoGear"},
		},
		Edges: []patch.Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}},
	}
	ch, err := e.Run(context.Background(), def, map[string]any{"msg": "z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, ch)

	var cStart Event
	for _, ev := range events {
		if ev.Type == NodeStart && ev.NodeID == "c" {
			cStart = ev
		}
	}
	fanin, ok := cStart.Input.([]any)
	if !ok || len(fanin) != 2 {
		t.Fatalf("expected ordered 2-element fan-in slice, got %#v", cStart.Input)
	}
}

func TestRun_EmptyPatch(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{ID: "empty"}
	ch, err := e.Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, ch)
	if len(events) != 2 || events[0].Type != RunStart || events[1].Type != RunComplete {
		t.Fatalf("expected [RunStart, RunComplete], got %+v", events)
	}
}

func TestRun_CycleRejectedAtStartup(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID: "cyclic",
		Nodes: []patch.Node{
			{ID: "a", Kind: patch.Local, Fn: "echoGear"},
			{ID: "b", Kind: patch.Local, Fn: "echoGear"},
		},
		Edges: []patch.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	}
	_, err := e.Run(context.Background(), def, nil)
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.CycleDetected {
		t.Fatalf("expected CycleDetected, got %v", err)
	}
}

func TestRun_NodeErrorShortCircuits(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID: "fails",
		Nodes: []patch.Node{
			{ID: "a", Kind: patch.Local, Fn: "missingFn"},
			{ID: "b", Kind: patch.Local, Fn: "echoGear"},
		},
		Edges: []patch.Edge{{Source: "a", Target: "b"}},
	}
	ch, err := e.Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}
	events := drain(t, ch)
	if len(events) != 4 {
		t.Fatalf("expected [RunStart, NodeStart, NodeError, RunComplete] with short circuit, got %+v", events)
	}
	var sawB bool
	for _, ev := range events {
		if ev.NodeID == "b" {
			sawB = true
		}
	}
	if sawB {
		t.Fatal("node b must never start after a's NodeError")
	}
	if events[len(events)-1].Type != RunComplete {
		t.Fatalf("expected trailing RunComplete, got %v", events[len(events)-1].Type)
	}
}

func TestRun_HTTPNode_DisallowedHost(t *testing.T) {
	e := newTestEngine()
	def := &patch.Definition{
		ID:    "ssrf",
		Nodes: []patch.Node{{ID: "a", Kind: patch.HTTP, URL: "http://169.254.169.254/latest/meta-data"}},
	}
	ch, err := e.Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}
	events := drain(t, ch)
	found := false
	for _, ev := range events {
		if ev.Type == NodeError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a NodeError, got %+v", events)
	}
}

func TestRun_HTTPNode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newTestEngine()
	e.Guard = urlguard.New("127.0.0.1")
	def := &patch.Definition{
		ID:    "http-ok",
		Nodes: []patch.Node{{ID: "a", Kind: patch.HTTP, URL: srv.URL}},
	}
	ch, err := e.Run(context.Background(), def, map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, ch)
	var success Event
	for _, ev := range events {
		if ev.Type == NodeSuccess {
			success = ev
		}
	}
	out := success.Output.(map[string]any)
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %v", out)
	}
}
