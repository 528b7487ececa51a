// Package openai implements generation.Generator on the OpenAI chat
// completions API, for deployments that route enrichment prompts to an
// OpenAI-compatible backend instead of Gemini.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/phrazzld/quill-api/internal/config"
	"github.com/phrazzld/quill-api/internal/generation"
	"github.com/phrazzld/quill-api/internal/redact"
)

const (
	temperature = 0.3
	maxTokens   = 200
)

// Generator sends each prompt as a single user message.
type Generator struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator builds a Generator from cfg. When baseURL is non-empty it
// replaces the default API host.
func NewGenerator(cfg config.LLMConfig, baseURL string, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		// Attempts are budgeted by the enrichment worker, not the SDK.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.ModelName,
		logger: logger.With("component", "openai_generator"),
	}, nil
}

// GenerateText implements generation.Generator.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", generation.ErrEmptyPrompt
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", generation.ErrTransientFailure, redact.Error(err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: content_filter", generation.ErrContentBlocked)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("%w: empty message", generation.ErrInvalidResponse)
	}

	g.logger.DebugContext(ctx, "chat completion received",
		"model", resp.Model,
		"finish_reason", choice.FinishReason)
	return choice.Message.Content, nil
}
