package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stellarlinkco/kindred/internal/config"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of conversational history sent to the model.
type Turn struct {
	Role    string
	Content string
}

// Completer produces a single text completion. The agent and the
// extraction engine both depend on this interface so tests can swap in
// a scripted fake.
type Completer interface {
	// Complete sends the system prompt plus history and returns the
	// model's text reply.
	Complete(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)

	// CompleteFast is Complete on the cheaper extraction model.
	CompleteFast(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)
}

// Client is the Anthropic-backed Completer.
type Client struct {
	api             anthropic.Client
	model           string
	extractionModel string
}

func NewClient(cfg config.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}
	extractionModel := cfg.ExtractionModel
	if extractionModel == "" {
		extractionModel = config.DefaultExtractionModel
	}
	return &Client{
		api:             anthropic.NewClient(opts...),
		model:           model,
		extractionModel: extractionModel,
	}, nil
}

func (c *Client) Complete(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error) {
	return c.complete(ctx, c.model, system, turns, maxTokens)
}

func (c *Client) CompleteFast(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error) {
	return c.complete(ctx, c.extractionModel, system, turns, maxTokens)
}

func (c *Client) complete(ctx context.Context, model, system string, turns []Turn, maxTokens int) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
	}

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("completion returned no text content")
	}
	return text.String(), nil
}
