// Package openai adapts OpenAI-compatible chat-completion backends to the
// provider contract via the sashabaranov/go-openai SDK. A custom base URL
// allows pointing the same adapter at any compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/provider"
	"frc-chat-gateway/internal/tokens"
)

const (
	providerName = "openai"

	// Rough prompt budget; the fixed history window already bounds turns,
	// this guards against a few very long messages blowing past it.
	defaultTokenBudget = 3500
)

// Getter resolves the API key from the parameter store.
type Getter interface {
	GetOptionalParameter(ctx context.Context, name string) (string, error)
}

type Client struct {
	model       string
	baseURL     string
	getter      Getter
	paramName   string
	tokenBudget int
	countTokens func(model, text string) int

	initOnce sync.Once
	api      *openai.Client
	initErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithTokenBudget(budget int) Option {
	return func(c *Client) {
		if budget > 0 {
			c.tokenBudget = budget
		}
	}
}

// NewClient creates an OpenAI-compatible adapter. The API key is fetched from
// the parameter store on the first Generate call; the SDK client is built
// once and reused.
func NewClient(getter Getter, paramName, model string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("openai: key parameter name must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	c := &Client{
		model:       model,
		getter:      getter,
		paramName:   paramName,
		tokenBudget: defaultTokenBudget,
		countTokens: tokens.Count,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) init(ctx context.Context) error {
	c.initOnce.Do(func() {
		key, err := c.getter.GetOptionalParameter(ctx, c.paramName)
		if err != nil {
			c.initErr = &provider.UnavailableError{Provider: providerName, Reason: "api key lookup failed"}
			return
		}
		key = strings.TrimSpace(key)
		if key == "" {
			c.initErr = &provider.UnavailableError{Provider: providerName, Reason: "api key not provisioned"}
			return
		}
		cfg := openai.DefaultConfig(key)
		if c.baseURL != "" {
			cfg.BaseURL = c.baseURL
		}
		c.api = openai.NewClientWithConfig(cfg)
	})
	return c.initErr
}

// Generate issues one chat completion and normalizes the result.
func (c *Client) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	if err := c.init(ctx); err != nil {
		return provider.Response{}, err
	}

	history := c.trimToBudget(req.History)
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: provider.SystemText(req),
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return provider.Response{}, normalizeError(err)
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, errors.New("openai: no choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return provider.Response{}, errors.New("openai: empty message in response")
	}
	return provider.Response{Text: text, Provider: providerName, Model: c.model}, nil
}

// trimToBudget drops the oldest turns while the prompt history exceeds the
// token budget. The final message (the current user utterance) always stays.
func (c *Client) trimToBudget(history []domain.ChatMessage) []domain.ChatMessage {
	trimmed := history
	for len(trimmed) > 1 && c.historyTokens(trimmed) > c.tokenBudget {
		trimmed = trimmed[1:]
	}
	return trimmed
}

func (c *Client) historyTokens(history []domain.ChatMessage) int {
	total := 0
	for _, m := range history {
		// Small per-message overhead for role framing.
		total += c.countTokens(c.model, m.Content) + 4
	}
	return total
}

// normalizeError converts SDK errors into the provider taxonomy, keeping the
// upstream HTTP status visible for rate-limit detection.
func normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &provider.StatusError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &provider.StatusError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       reqErr.Error(),
		}
	}
	return fmt.Errorf("openai: request failed: %w", err)
}
