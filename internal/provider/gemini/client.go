// Package gemini adapts the Google Gemini generateContent API to the
// provider contract.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/provider"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// part / content / generateRequest mirror the minimal request shape of the
// generateContent endpoint.
type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// generateResponse is the minimal response shape: candidates nest content
// parts, and blocked prompts surface through promptFeedback instead.
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Getter resolves the Gemini API key from the parameter store.
type Getter interface {
	GetOptionalParameter(ctx context.Context, name string) (string, error)
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	getter     Getter
	paramName  string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Gemini adapter. The API key is fetched from the
// parameter store on the first Generate call and cached for the process
// lifetime.
func NewClient(getter Getter, paramName, model string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("gemini: key parameter name must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		getter:     getter,
		paramName:  paramName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.getter.GetOptionalParameter(ctx, c.paramName)
		c.apiKey = strings.TrimSpace(c.apiKey)
	})
	return c.apiKey, c.keyErr
}

// Generate calls generateContent and normalizes the nested candidate/part
// response into a canonical Response. Safety-blocked generations become
// user-presentable fallback text rather than errors.
func (c *Client) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return provider.Response{}, &provider.UnavailableError{Provider: providerName, Reason: "api key lookup failed"}
	}
	if apiKey == "" {
		return provider.Response{}, &provider.UnavailableError{Provider: providerName, Reason: "api key not provisioned"}
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return provider.Response{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Response{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return provider.Response{}, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return provider.Response{}, &provider.StatusError{
			Provider:   providerName,
			StatusCode: res.StatusCode,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return provider.Response{}, fmt.Errorf("gemini: read response body: %w", err)
	}
	var payload generateResponse
	if err := json.Unmarshal(buf, &payload); err != nil {
		return provider.Response{}, fmt.Errorf("gemini: decode response: %w", err)
	}

	text, err := extractText(payload, req.Language)
	if err != nil {
		return provider.Response{}, err
	}
	return provider.Response{Text: text, Provider: providerName, Model: c.model}, nil
}

func (c *Client) buildRequest(req provider.Request) generateRequest {
	contents := make([]content, 0, len(req.History))
	for _, m := range req.History {
		if m.Role == domain.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	out := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 4000,
		},
	}
	if system := provider.SystemText(req); strings.TrimSpace(system) != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	return out
}

// extractText unwraps candidates/parts. Blocked or filtered generations are
// mapped to fallback messages in the request language; a response with
// neither text nor a block reason is a malformed-shape error.
func extractText(payload generateResponse, language string) (string, error) {
	if len(payload.Candidates) > 0 {
		candidate := payload.Candidates[0]
		switch candidate.FinishReason {
		case "SAFETY":
			return localized(language, safetyFallbackTR, safetyFallbackEN), nil
		case "RECITATION":
			return localized(language, recitationFallbackTR, recitationFallbackEN), nil
		}
		var pieces []string
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				pieces = append(pieces, p.Text)
			}
		}
		if len(pieces) > 0 {
			return strings.Join(pieces, "\n\n"), nil
		}
	}
	if reason := payload.PromptFeedback.BlockReason; reason != "" {
		return fmt.Sprintf(localized(language, blockedFallbackTR, blockedFallbackEN), reason), nil
	}
	return "", errors.New("gemini: no candidates in response")
}

const (
	safetyFallbackTR     = "Üzgünüm, güvenlik filtresi nedeniyle bu mesaja yanıt veremiyorum. Lütfen mesajınızı yeniden formüle edin."
	safetyFallbackEN     = "Sorry, I can't respond to this message because of the safety filter. Please rephrase your message."
	recitationFallbackTR = "Üzgünüm, telif hakkı koruması nedeniyle bu içeriği oluşturamıyorum."
	recitationFallbackEN = "Sorry, I can't produce this content due to copyright protection."
	blockedFallbackTR    = "Üzgünüm, mesajınız güvenlik nedeniyle engellendi: %s. Lütfen mesajınızı yeniden formüle edin."
	blockedFallbackEN    = "Sorry, your message was blocked for safety reasons: %s. Please rephrase your message."
)

func localized(language, tr, en string) string {
	if strings.EqualFold(language, "en") {
		return en
	}
	return tr
}
