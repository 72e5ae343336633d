package llm

import (
	"context"
	"sync"
)

// MockModel is a deterministic, thread-safe Model for tests. Each call
// to Chat returns the next entry in Responses, repeating the last entry
// once exhausted.
type MockModel struct {
	Responses []Out
	Err       error

	mu    sync.Mutex
	calls []Call
	next  int
}

// Call records one invocation for assertions in tests.
type Call struct {
	Messages []Message
}

func (m *MockModel) Chat(ctx context.Context, messages []Message) (Out, error) {
	if ctx.Err() != nil {
		return Out{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Messages: messages})
	if m.Err != nil {
		return Out{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Out{}, nil
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.next++
	}
	return m.Responses[idx], nil
}

// Calls returns a copy of the recorded call history.
func (m *MockModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
