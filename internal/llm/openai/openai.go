// Package openai adapts OpenAI's chat completions API to the llm.Model
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/gearforge/gearforge/internal/llm"
)

const defaultModel = "gpt-4o"

// Model implements llm.Model against OpenAI's chat completions API,
// retrying transient failures (timeouts, 5xx, rate limits) a bounded
// number of times before giving up.
type Model struct {
	apiKey     string
	modelName  string
	client     client
	maxRetries int
	retryDelay time.Duration
}

type client interface {
	createChatCompletion(ctx context.Context, messages []llm.Message) (llm.Out, error)
}

// New returns a Model configured for modelName, or defaultModel when empty.
func New(apiKey, modelName string) *Model {
	if modelName == "" {
		modelName = defaultModel
	}
	return &Model{
		apiKey:     apiKey,
		modelName:  modelName,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

func (m *Model) Chat(ctx context.Context, messages []llm.Message) (llm.Out, error) {
	if ctx.Err() != nil {
		return llm.Out{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.client.createChatCompletion(ctx, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransient(err) {
			return llm.Out{}, err
		}
		if attempt >= m.maxRetries {
			break
		}
		select {
		case <-time.After(m.retryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			return llm.Out{}, ctx.Err()
		}
	}
	return llm.Out{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "rate limit", "429", "503", "502", "500"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []llm.Message) (llm.Out, error) {
	if c.apiKey == "" {
		return llm.Out{}, errors.New("openai: API key is required")
	}

	cl := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertMessages(messages),
	}

	resp, err := cl.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Out{}, fmt.Errorf("openai: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []llm.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			result[i] = openaisdk.SystemMessage(m.Content)
		case llm.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(m.Content)
		default:
			result[i] = openaisdk.UserMessage(m.Content)
		}
	}
	return result
}

// convertResponse tolerates a response with zero choices, returning an
// empty Out rather than panicking on resp.Choices[0].
func convertResponse(resp *openaisdk.ChatCompletion) llm.Out {
	if len(resp.Choices) == 0 {
		return llm.Out{}
	}
	return llm.Out{Text: resp.Choices[0].Message.Content}
}
