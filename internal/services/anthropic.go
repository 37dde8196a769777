// Anthropic Messages API implementation of [TextGenerator]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/tunefeed/internal/shared"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	anthropicModel   = "claude-3-opus-20240229"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// AnthropicService implements [TextGenerator] with a single user message per prompt.
type AnthropicService struct {
	client
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
}

// NewAnthropicService creates a text generator. An API key is required.
func NewAnthropicService(cfg shared.AnthropicConfig, opts ClientOptions) (*AnthropicService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing anthropic api_key", shared.ErrMissingCredentials)
	}

	svc := &AnthropicService{
		client:    newClient("anthropic", opts),
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if svc.baseURL == "" {
		svc.baseURL = anthropicBaseURL
	}
	if svc.model == "" {
		svc.model = anthropicModel
	}
	if svc.maxTokens <= 0 {
		svc.maxTokens = 1024
	}
	return svc, nil
}

// Generate sends prompt and returns the text of the first content block.
func (a *AnthropicService) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: generate: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	var resp anthropicResponse
	if err := a.do(req, "generate", &resp); err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: generate: response has no text content", shared.ErrParseResponse)
}
