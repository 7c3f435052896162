// Package provider defines the uniform contract over interchangeable LLM
// backends. Each concrete adapter normalizes its backend's request/response
// shapes into Request/Response and reports failures through two
// distinguishable error types: UnavailableError (misconfiguration, detected
// before any network call) and StatusError (the backend rejected the call).
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"frc-chat-gateway/internal/domain"
)

// Request is the canonical generation request. History must already be
// trimmed to the configured window; adapters may trim further (e.g. by token
// budget) but never extend it.
type Request struct {
	SystemPrompt    string
	EnrichmentBlock string
	History         []domain.ChatMessage
	Language        string
}

// Response is the canonical generation result.
type Response struct {
	Text     string
	Provider string
	Model    string
}

// Provider is one interchangeable LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a non-success response from a model backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UnavailableError reports a provider that cannot be called at all, typically
// because its API key is not provisioned.
type UnavailableError struct {
	Provider string
	Reason   string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: provider unavailable: %s", e.Provider, e.Reason)
}

// SystemText merges the fresh system prompt with the enrichment block. An
// empty block is omitted entirely so the model never sees empty delimiters.
func SystemText(req Request) string {
	if strings.TrimSpace(req.EnrichmentBlock) == "" {
		return req.SystemPrompt
	}
	return req.SystemPrompt + "\n\n" + req.EnrichmentBlock
}

// TrimHistory keeps only the most recent window of non-system messages.
// Full history stays in persistence; only this window reaches the backend.
func TrimHistory(history []domain.ChatMessage, window int) []domain.ChatMessage {
	trimmed := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		trimmed = append(trimmed, m)
	}
	if window > 0 && len(trimmed) > window {
		trimmed = trimmed[len(trimmed)-window:]
	}
	return trimmed
}

// Registry selects providers by explicit name; no runtime type inspection.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &UnavailableError{Provider: name, Reason: "unknown provider"}
	}
	return p, nil
}

// IsUnavailable reports whether err means the provider could not be called.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
