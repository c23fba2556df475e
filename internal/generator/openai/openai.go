package openai

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"notebookrag/internal/domain"
)

const systemPrompt = "You answer strictly from the provided document context. If the context does not contain the answer, say so."

// Client generates answers through an OpenAI-compatible chat completions API.
type Client struct {
	client openai.Client
	model  string
}

// Config configures the chat completions client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a chat client. Local servers such as Ollama accept any
// key, so an unset variable only fails when the base URL is the public API.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		if strings.Contains(cfg.BaseURL, "api.openai.com") {
			return nil, domain.ConfigError("missing API key in env %s", cfg.APIKeyEnv)
		}
		key = "unused"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(t),
			option.WithMaxRetries(2),
		),
		model: cfg.Model,
	}, nil
}

func (c *Client) Name() string { return "openai:" + c.model }

// Generate sends the rendered prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt.Text()),
		},
	})
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Unavailable(c.Name(), errors.New("no choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
