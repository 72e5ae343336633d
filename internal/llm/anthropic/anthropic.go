// Package anthropic adapts Anthropic's Claude API to the llm.Model
// interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gearforge/gearforge/internal/llm"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Model implements llm.Model against the Anthropic messages API, with the
// actual SDK call behind an interface so tests can substitute a fake.
type Model struct {
	apiKey    string
	modelName string
	client    client
}

type client interface {
	createMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.Out, error)
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
	system, rest := extractSystemPrompt(messages)
	out, err := m.client.createMessage(ctx, system, rest)
	if err != nil {
		return llm.Out{}, translateError(err)
	}
	return out, nil
}

// extractSystemPrompt pulls every RoleSystem message out of messages (the
// Anthropic API takes system as a separate parameter, not an in-band
// message) and concatenates them in order.
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

func translateError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: %s", apiErr.Error())
	}
	return fmt.Errorf("anthropic: %w", err)
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.Out, error) {
	if c.apiKey == "" {
		return llm.Out{}, errors.New("anthropic: API key is required")
	}

	cl := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: 4096,
		Messages:  convertMessages(messages),
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := cl.Messages.New(ctx, params)
	if err != nil {
		return llm.Out{}, err
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []llm.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			result = append(result, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	return result
}

// convertResponse concatenates every text block in the reply and tolerates
// a response with no text blocks at all (an empty string, never a panic).
func convertResponse(resp *anthropicsdk.Message) llm.Out {
	var out llm.Out
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		}
	}
	return out
}
