// Package gear implements the gear model: a stateful actor that is both
// an authored artifact (prompt messages, examples, wiring) and an
// executable unit that processes inbound messages through an LLM and
// fans its output out to downstream gears.
package gear

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gearforge/gearforge/internal/llm"
)

// logCap is the bounded log's maximum length.
const logCap = 50

// Role is a message role, coerced to RoleUser on ingress if unrecognized.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CoerceRole maps any input role string to a valid Role, defaulting to
// RoleUser for anything unrecognized.
func CoerceRole(s string) Role {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s)
	default:
		return RoleUser
	}
}

// Message is one turn in a gear's prompt history.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Example is a sample input shown in the authoring UI; the engine itself
// never reads Examples, they are opaque authored metadata.
type Example struct {
	ID    string `json:"id"`
	Input any    `json:"input"`
}

// SourceRef identifies where a LogEntry's input came from: either a
// gear (id+label) or a bare string tag for non-gear sources.
type SourceRef struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// LogEntry is one audit record written on direct HTTP ingress.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Input     any       `json:"input"`
	Output    any       `json:"output"`
	Source    SourceRef `json:"source"`
}

// Gear holds one gear's authored state and runtime inputs. All mutating
// methods take the gear's mutex. Process/ProcessInput hold it only while
// reading state and building the prompt, not across the LLM call or the
// fan-out, so concurrent Process/ProcessInput calls on the same gear can
// overlap; they are not serialized.
type Gear struct {
	mu sync.Mutex

	ID            string
	Label         string
	Messages      []Message
	ExampleInputs []Example
	Inputs        map[string]any
	OutputURLs    []string
	Log           []LogEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// lastUserMessage tracks the most recent user-role message content so
	// AddMessage can apply tail-duplicate suppression.
	lastUserMessage string

	// model and forwarder are injected collaborators; Gear never talks to
	// an LLM provider SDK or net/http directly.
	model      llm.Model
	forwarder  Forwarder
	originBase string
}

// Forwarder performs the downstream POST described in
// Gear.ForwardOutputToGears. Implemented by internal/httpapi against
// real HTTP, and fakeable in tests.
type Forwarder interface {
	Forward(ctx context.Context, url string, payload ForwardPayload) error
}

// ForwardPayload is the body a forwarded POST carries.
type ForwardPayload struct {
	SourceGear SourceRef `json:"source_gear"`
	MessageID  string    `json:"message_id"`
	Data       any       `json:"data"`
}

// New constructs a fresh Gear. model may be nil only in tests that never
// call Process; forwarder may be nil, which makes ForwardOutputToGears a
// no-op.
func New(id, label string, model llm.Model, forwarder Forwarder, originBase string) *Gear {
	now := time.Now().UTC()
	return &Gear{
		ID:         id,
		Label:      label,
		Inputs:     make(map[string]any),
		CreatedAt:  now,
		UpdatedAt:  now,
		model:      model,
		forwarder:  forwarder,
		originBase: originBase,
	}
}

func (g *Gear) touch() {
	g.UpdatedAt = time.Now().UTC()
}

// AddMessage appends msg with its role coerced into the valid set,
// applying the tail-duplicate suppression rule: a new user message whose
// content equals the current last user message is skipped rather than
// appended again.
func (g *Gear) AddMessage(role, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := CoerceRole(role)
	if r == RoleUser && content == g.lastUserMessage && g.lastUserMessage != "" {
		return
	}
	g.Messages = append(g.Messages, Message{ID: uuid.NewString(), Role: r, Content: content})
	if r == RoleUser {
		g.lastUserMessage = content
	}
	g.touch()
}

// SetLabel replaces Label wholesale.
func (g *Gear) SetLabel(label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Label = label
	g.touch()
}

// SetOutputURLs replaces OutputURLs wholesale.
func (g *Gear) SetOutputURLs(urls []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OutputURLs = append([]string(nil), urls...)
	g.touch()
}

// SetExampleInputs replaces ExampleInputs wholesale.
func (g *Gear) SetExampleInputs(examples []Example) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ExampleInputs = append([]Example(nil), examples...)
	g.touch()
}

// systemPrompt concatenates every system-role message, in order, into the
// effective system prompt used by Process.
func (g *Gear) systemPrompt() string {
	var b strings.Builder
	for _, m := range g.Messages {
		if m.Role != RoleSystem {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// promptMessages builds the LLM call's message list from systemPrompt
// plus the gear's authored conversation messages plus the turn input,
// added as a final user message.
func (g *Gear) promptMessages(turnInput any) []llm.Message {
	msgs := make([]llm.Message, 0, len(g.Messages)+2)
	if sp := g.systemPrompt(); sp != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sp})
	}
	for _, m := range g.Messages {
		if m.Role == RoleSystem {
			continue
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	if turnInput != nil {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: stringifyInput(turnInput)})
	}
	return msgs
}

// ProcessInput stores payload under inputs[sourceID] (overwriting) and
// invokes Process with the accumulated inputs map, supporting multi-
// source fan-in.
func (g *Gear) ProcessInput(ctx context.Context, sourceID string, payload any) (any, error) {
	g.mu.Lock()
	g.Inputs[sourceID] = payload
	snapshot := make(map[string]any, len(g.Inputs))
	for k, v := range g.Inputs {
		snapshot[k] = v
	}
	g.mu.Unlock()

	return g.process(ctx, nil, snapshot, true)
}

// Process composes the system prompt plus directInput (the single-source
// path, which leaves the Inputs map untouched), invokes the LLM, and
// forwards the output to every configured OutputURL.
func (g *Gear) Process(ctx context.Context, directInput any) (any, error) {
	return g.process(ctx, directInput, nil, true)
}

// ProcessWithoutForwarding behaves like Process but skips the fan-out to
// OutputURLs; a caller can forward the output later with
// ForwardOutputToGears.
func (g *Gear) ProcessWithoutForwarding(ctx context.Context, directInput any) (any, error) {
	return g.process(ctx, directInput, nil, false)
}

// process is the shared implementation behind Process/ProcessInput. Only
// one of directInput/inputsSnapshot is meaningful per call.
func (g *Gear) process(ctx context.Context, directInput any, inputsSnapshot map[string]any, forward bool) (any, error) {
	g.mu.Lock()
	model := g.model
	var turnInput any
	if inputsSnapshot != nil {
		turnInput = inputsSnapshot
	} else {
		turnInput = directInput
	}
	msgs := g.promptMessages(turnInput)
	urls := append([]string(nil), g.OutputURLs...)
	id := g.ID
	label := g.Label
	g.mu.Unlock()

	var output string
	if model != nil {
		out, err := model.Chat(ctx, msgs)
		if err != nil {
			return nil, err
		}
		output = out.Text
	}

	if forward {
		g.forwardOutputToGears(ctx, id, label, urls, output)
	}
	return output, nil
}

// ForwardOutputToGears posts output to every url in g.OutputURLs. Per-URL
// failures returned by the Forwarder are logged and never abort siblings
// or propagate to the caller.
func (g *Gear) ForwardOutputToGears(ctx context.Context, output any) {
	g.mu.Lock()
	urls := append([]string(nil), g.OutputURLs...)
	id, label := g.ID, g.Label
	g.mu.Unlock()
	g.forwardOutputToGears(ctx, id, label, urls, output)
}

func (g *Gear) forwardOutputToGears(ctx context.Context, id, label string, urls []string, output any) {
	if g.forwarder == nil || len(urls) == 0 {
		return
	}
	payload := ForwardPayload{
		SourceGear: SourceRef{ID: id, Label: label},
		MessageID:  uuid.NewString(),
		Data:       output,
	}
	for _, u := range urls {
		resolved := resolveURL(u, g.originBase)
		// Best-effort: a failing downstream must never affect siblings or
		// the caller.
		if err := g.forwarder.Forward(ctx, resolved, payload); err != nil {
			slog.Warn("gear forward failed", "gear_id", id, "url", resolved, "error", err)
		}
	}
}

// resolveURL resolves a relative outputUrl against originBase.
func resolveURL(raw, originBase string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if originBase == "" {
		return raw
	}
	return strings.TrimRight(originBase, "/") + "/" + strings.TrimLeft(raw, "/")
}

// AppendLogEntry prepends a LogEntry, enforcing the bounded, newest-first
// invariant (cap 50).
func (g *Gear) AppendLogEntry(entry LogEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Log = append([]LogEntry{entry}, g.Log...)
	if len(g.Log) > logCap {
		g.Log = g.Log[:logCap]
	}
	g.touch()
}

// SnapshotView is the JSON-serializable projection of a Gear's state,
// returned by Snapshot so callers never copy the gear's embedded mutex.
type SnapshotView struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Messages      []Message  `json:"messages"`
	ExampleInputs []Example  `json:"exampleInputs"`
	OutputURLs    []string   `json:"outputUrls"`
	Log           []LogEntry `json:"log"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Snapshot returns a value copy safe to serialize for the GET /gears/{id}
// response, without holding the gear's lock past the call and without
// copying the gear's mutex by value.
func (g *Gear) Snapshot() SnapshotView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return SnapshotView{
		ID:            g.ID,
		Label:         g.Label,
		Messages:      append([]Message(nil), g.Messages...),
		ExampleInputs: append([]Example(nil), g.ExampleInputs...),
		OutputURLs:    append([]string(nil), g.OutputURLs...),
		Log:           append([]LogEntry(nil), g.Log...),
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}

func stringifyInput(input any) string {
	if s, ok := input.(string); ok {
		return s
	}
	return toJSONOrFmt(input)
}
