package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/gearforge/gearforge/internal/llm"
)

type fakeClient struct {
	gotSystem string
	gotRest   []llm.Message
	out       llm.Out
	err       error
}

func (f *fakeClient) createMessage(_ context.Context, systemPrompt string, messages []llm.Message) (llm.Out, error) {
	f.gotSystem = systemPrompt
	f.gotRest = messages
	return f.out, f.err
}

func TestExtractSystemPrompt(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleSystem, Content: "never apologize"},
	}
	system, rest := extractSystemPrompt(msgs)
	if system != "be terse\nnever apologize" {
		t.Fatalf("unexpected system prompt: %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "hi" {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestChat_SplitsSystemPromptFromMessages(t *testing.T) {
	fc := &fakeClient{out: llm.Out{Text: "hello"}}
	m := &Model{client: fc}

	out, err := m.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hello" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if fc.gotSystem != "be terse" {
		t.Fatalf("system prompt not forwarded: %q", fc.gotSystem)
	}
	if len(fc.gotRest) != 1 {
		t.Fatalf("expected 1 non-system message, got %d", len(fc.gotRest))
	}
}

func TestChat_ContextAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Model{client: &fakeClient{}}
	if _, err := m.Chat(ctx, nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestChat_WrapsClientError(t *testing.T) {
	m := &Model{client: &fakeClient{err: errors.New("boom")}}
	_, err := m.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_DefaultsModelName(t *testing.T) {
	m := New("key", "")
	if m.modelName != defaultModel {
		t.Fatalf("expected default model, got %q", m.modelName)
	}
}
