// Package llm defines the opaque LLM adapter contract: given an ordered
// message list, return a full text completion or a token stream with a
// completion callback.
package llm

import "context"

// Role mirrors gear.Role but is declared independently so this package
// has no dependency on internal/gear (the dependency runs the other way).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation sent to a Model.
type Message struct {
	Role    Role
	Content string
}

// Out is a chat completion result. Implementations must tolerate
// null/empty content and stringify non-string assistant content, which
// is why Text is always a string by the time it reaches the caller.
type Out struct {
	Text string
}

// StreamHandler receives incremental tokens as they arrive, followed by
// exactly one OnFinish call carrying the final assembled message.
type StreamHandler interface {
	OnToken(token string)
	OnFinish(out Out)
}

// Model is the opaque LLM Adapter contract. Chat blocks for a full
// completion; adapters that can also stream implement StreamingModel,
// whose ChatStream drives a StreamHandler instead.
type Model interface {
	Chat(ctx context.Context, messages []Message) (Out, error)
}

// StreamingModel is implemented by adapters that can additionally stream
// tokens. Not every Model needs to implement it.
type StreamingModel interface {
	Model
	ChatStream(ctx context.Context, messages []Message, handler StreamHandler) error
}
