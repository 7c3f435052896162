// Package knowledge is a client for the semantic document-search service
// backing the FRC knowledge base. Like the team registry connector, it
// degrades to empty results on any failure; a missing API key or base URL
// disables it without a network call.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"frc-chat-gateway/internal/enrichment"
)

const maxSearchLimit = 5

// Getter resolves the search-service API key from the parameter store.
type Getter interface {
	GetOptionalParameter(ctx context.Context, name string) (string, error)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []struct {
		ID       string  `json:"id"`
		Content  string  `json:"content"`
		Score    float64 `json:"score"`
		Metadata struct {
			Topic    string `json:"topic"`
			Category string `json:"category"`
		} `json:"metadata"`
	} `json:"results"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	paramName  string

	keyOnce sync.Once
	apiKey  string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a knowledge-search client. An empty baseURL is allowed
// and simply disables the connector.
func NewClient(getter Getter, paramName, baseURL string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("knowledge: paramstore getter must not be nil")
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 8 * time.Second},
		getter:     getter,
		paramName:  strings.TrimSpace(paramName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) string {
	c.keyOnce.Do(func() {
		if c.paramName == "" {
			return
		}
		key, err := c.getter.GetOptionalParameter(ctx, c.paramName)
		if err != nil {
			slog.Warn("knowledge: api key unavailable, search disabled", "err", err)
			return
		}
		c.apiKey = strings.TrimSpace(key)
	})
	return c.apiKey
}

// Search runs one semantic query and returns up to limit ranked fragments.
func (c *Client) Search(ctx context.Context, query string, limit int) []enrichment.Fragment {
	query = strings.TrimSpace(query)
	if query == "" || c.baseURL == "" {
		return nil
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = 3
	}
	key := c.resolveAPIKey(ctx)
	if key == "" {
		return nil
	}

	body, err := json.Marshal(searchRequest{Query: query, TopK: limit})
	if err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	res, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("knowledge: search request failed", "err", err)
		return nil
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		slog.Warn("knowledge: unexpected status", "status", res.StatusCode)
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil
	}
	var payload searchResponse
	if err := json.Unmarshal(buf, &payload); err != nil {
		slog.Warn("knowledge: decode response failed", "err", err)
		return nil
	}

	fragments := make([]enrichment.Fragment, 0, len(payload.Results))
	for _, r := range payload.Results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		source := "FRC Knowledge Base"
		if r.Metadata.Topic != "" {
			source += ": " + r.Metadata.Topic
		}
		fragments = append(fragments, enrichment.Fragment{Source: source, Body: content})
		if len(fragments) == limit {
			break
		}
	}
	return fragments
}
