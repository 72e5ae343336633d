package google

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/gearforge/gearforge/internal/llm"
)

type fakeClient struct {
	out llm.Out
	err error
}

func (f *fakeClient) generateContent(_ context.Context, _ []llm.Message) (llm.Out, error) {
	return f.out, f.err
}

func TestChat_ReturnsText(t *testing.T) {
	m := &Model{client: &fakeClient{out: llm.Out{Text: "answer"}}}
	out, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "answer" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestChat_TranslatesSafetyFilterError(t *testing.T) {
	m := &Model{client: &fakeClient{err: &SafetyFilterError{Category: "prompt"}}}
	_, err := m.Chat(context.Background(), nil)

	var safety *SafetyFilterError
	if !errors.As(err, &safety) {
		t.Fatalf("expected *SafetyFilterError, got %v (%T)", err, err)
	}
	if safety.Category != "prompt" {
		t.Fatalf("unexpected category: %q", safety.Category)
	}
}

func TestExtractSystemPrompt(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "one"},
		{Role: llm.RoleUser, Content: "question"},
	}
	system, rest := extractSystemPrompt(msgs)
	if system != "one" {
		t.Fatalf("unexpected system: %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "question" {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestConvertResponse_NoCandidatesNoSafetyRatings(t *testing.T) {
	out, err := convertResponse(&genai.GenerateContentResponse{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "" {
		t.Fatalf("expected empty text, got %q", out.Text)
	}
}

func TestConvertResponse_NoCandidatesWithSafetyRatings(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{
			SafetyRatings: []*genai.SafetyRating{{Category: genai.HarmCategoryHarassment}},
		},
	}
	_, err := convertResponse(resp)
	var safety *SafetyFilterError
	if !errors.As(err, &safety) {
		t.Fatalf("expected *SafetyFilterError, got %v", err)
	}
}

func TestConvertResponse_ConcatenatesTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []genai.Part{genai.Text("hello "), genai.Text("world")},
				},
			},
		},
	}
	out, err := convertResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hello \nworld" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
}
