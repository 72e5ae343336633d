// Package google adapts Google's Gemini API to the llm.Model interface.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/gearforge/gearforge/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// Model implements llm.Model against the Gemini API. A safety-filter
// block surfaces as a *SafetyFilterError so callers can distinguish it
// from a transport failure.
type Model struct {
	apiKey    string
	modelName string
	client    client
}

type client interface {
	generateContent(ctx context.Context, messages []llm.Message) (llm.Out, error)
}

// SafetyFilterError reports that Gemini refused to complete a prompt.
type SafetyFilterError struct {
	Category string
}

func (e *SafetyFilterError) Error() string {
	return fmt.Sprintf("google: content blocked by safety filter (%s)", e.Category)
}

// New returns a Model configured for modelName, or defaultModel when empty.
func New(apiKey, modelName string) *Model {
	if modelName == "" {
		modelName = defaultModel
	}
	return &Model{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

func (m *Model) Chat(ctx context.Context, messages []llm.Message) (llm.Out, error) {
	if ctx.Err() != nil {
		return llm.Out{}, ctx.Err()
	}
	out, err := m.client.generateContent(ctx, messages)
	if err != nil {
		var safety *SafetyFilterError
		if errors.As(err, &safety) {
			return llm.Out{}, safety
		}
		return llm.Out{}, err
	}
	return out, nil
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []llm.Message) (llm.Out, error) {
	if c.apiKey == "" {
		return llm.Out{}, errors.New("google: API key is required")
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return llm.Out{}, fmt.Errorf("google: creating client: %w", err)
	}
	defer cl.Close()

	genModel := cl.GenerativeModel(c.modelName)
	system, rest := extractSystemPrompt(messages)
	if system != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := genModel.GenerateContent(ctx, convertParts(rest)...)
	if err != nil {
		return llm.Out{}, fmt.Errorf("google: %w", err)
	}
	return convertResponse(resp)
}

func extractSystemPrompt(messages []llm.Message) (string, []llm.Message) {
	var system string
	rest := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// convertParts flattens every remaining message into genai.Text parts;
// Gemini's GenerateContent takes a flat part list rather than a role-
// tagged turn history for single-turn calls.
func convertParts(messages []llm.Message) []genai.Part {
	parts := make([]genai.Part, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, genai.Text(m.Content))
	}
	return parts
}

func convertResponse(resp *genai.GenerateContentResponse) (llm.Out, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && len(resp.PromptFeedback.SafetyRatings) > 0 {
			return llm.Out{}, &SafetyFilterError{Category: "prompt"}
		}
		return llm.Out{}, nil
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return llm.Out{}, &SafetyFilterError{Category: "response"}
	}
	var out llm.Out
	if cand.Content == nil {
		return out, nil
	}
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(text)
		}
	}
	return out, nil
}
