package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/quill-api/internal/config"
	"github.com/phrazzld/quill-api/internal/generation"
	"github.com/phrazzld/quill-api/internal/redact"
	"github.com/tidwall/gjson"
)

const (
	apiKeyHeader     = "X-goog-api-key"
	maxResponseBytes = 1 << 20
	textPath         = "candidates.0.content.parts.0.text"
	blockReasonPath  = "promptFeedback.blockReason"
	finishReasonPath = "candidates.0.finishReason"
)

type requestBody struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

// RESTGenerator calls a generateContent endpoint over plain HTTP.
type RESTGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ generation.Generator = (*RESTGenerator)(nil)

// NewRESTGenerator builds a generator from cfg. A nil httpClient gets one
// with cfg.Timeout() as its overall deadline.
func NewRESTGenerator(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*RESTGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("%w: endpoint URL cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", generation.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}

	return &RESTGenerator{
		endpoint: cfg.EndpointURL,
		apiKey:   cfg.APIKey,
		client:   httpClient,
		logger:   logger.With("component", "gemini_rest_generator"),
	}, nil
}

// GenerateText implements generation.Generator.
func (g *RESTGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", generation.ErrEmptyPrompt
	}

	payload, err := json.Marshal(requestBody{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build request: %v", generation.ErrInvalidConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", generation.ErrTransientFailure, redact.Error(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", generation.ErrTransientFailure, err)
	}

	g.logger.DebugContext(ctx, "generateContent responded",
		"status", resp.StatusCode,
		"body_bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s",
			generation.ErrTransientFailure, resp.StatusCode, redact.Truncate(string(body), 200))
	}

	return extractText(body)
}

// extractText pulls the first candidate's text out of a generateContent reply.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: malformed JSON", generation.ErrInvalidResponse)
	}

	if reason := gjson.GetBytes(body, blockReasonPath); reason.Exists() {
		return "", fmt.Errorf("%w: %s", generation.ErrContentBlocked, reason.String())
	}
	if finish := gjson.GetBytes(body, finishReasonPath); finish.String() == "SAFETY" {
		return "", fmt.Errorf("%w: finish reason SAFETY", generation.ErrContentBlocked)
	}

	text := gjson.GetBytes(body, textPath)
	if !text.Exists() || text.Type != gjson.String {
		return "", fmt.Errorf("%w: missing %s", generation.ErrInvalidResponse, textPath)
	}
	return text.String(), nil
}
