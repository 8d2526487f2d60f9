package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"paperrag/internal/domain"
)

// OpenAIChat generates completions through an OpenAI-compatible
// /chat/completions endpoint with temperature 0.
type OpenAIChat struct {
	client openai.Client
	model  string
}

func NewOpenAIChat(apiKey, baseURL, model string, timeout time.Duration) *OpenAIChat {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChat{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}
}

// Generate sends prompt as a single user message. An empty completion is
// returned as "" without error.
func (c *OpenAIChat) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %w", domain.ErrCollaborator, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIChat) ModelName() string {
	return c.model
}

// MockLLM returns a canned reply and records every prompt it receives.
type MockLLM struct {
	Reply   string
	Err     error
	Prompts []string
}

func (m *MockLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *MockLLM) ModelName() string {
	return "mock"
}
