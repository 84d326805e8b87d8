package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"shorts-factory/config"
)

// Completer is the narrow surface the stage collaborators depend on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteJSON(ctx context.Context, name, system, user string, schema any) (string, error)
}

// Client talks to any OpenAI-compatible chat endpoint. The default base URL
// points at Groq.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
}

// New builds a Client from the llm config section. Extra request options
// are appended after the config-derived ones.
func New(cfg config.LLMConfig, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GROQ_API_KEY not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model not configured")
	}
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:         openai.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete returns the raw text of the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.send(ctx, c.params(system, user))
}

// CompleteJSON asks for output conforming to schema. Strict mode stays off
// because not every hosted model honours it.
func (c *Client) CompleteJSON(ctx context.Context, name, system, user string, schema any) (string, error) {
	p := c.params(system, user)
	p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema,
				Strict: openai.Bool(false),
			},
		},
	}
	return c.send(ctx, p)
}

func (c *Client) params(system, user string) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(user))
	return openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
}

func (c *Client) send(ctx context.Context, p openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
