package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/provider"
)

const (
	defaultHistoryWindow   = 4
	defaultGenerateTimeout = 60 * time.Second
	defaultLanguage        = "tr"
)

// Enricher builds the retrieved-context block for one user message.
type Enricher interface {
	BuildContext(ctx context.Context, userText string) string
}

// TurnWriter records a completed turn best-effort and returns the
// conversation id it was written to ("" when nothing was persisted).
type TurnWriter interface {
	AppendTurn(ctx context.Context, conversationID, userID, userText, assistantText, contextTag string) string
}

// httpStatusCoder is implemented by upstream errors that carry an HTTP
// status, e.g. provider.StatusError.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService orchestrates one chat turn:
// validate -> enrich -> generate -> persist (best-effort) -> respond.
// The service is stateless per request; everything is rehydrated from the
// input on each call.
type ChatService struct {
	enricher        Enricher
	provider        provider.Provider
	recorder        TurnWriter
	historyWindow   int
	generateTimeout time.Duration
}

type ChatInput struct {
	UserID         string
	Messages       []domain.ChatMessage
	Context        string
	ConversationID string
	Language       string
}

type ChatOutput struct {
	Answer         string
	ConversationID string
	Context        string
	Provider       string
	Model          string
}

type ChatOption func(*ChatService)

func WithHistoryWindow(window int) ChatOption {
	return func(s *ChatService) {
		if window > 0 {
			s.historyWindow = window
		}
	}
}

func WithGenerateTimeout(d time.Duration) ChatOption {
	return func(s *ChatService) {
		if d > 0 {
			s.generateTimeout = d
		}
	}
}

func NewChatService(enricher Enricher, p provider.Provider, recorder TurnWriter, opts ...ChatOption) (*ChatService, error) {
	if enricher == nil {
		return nil, errors.New("usecase: enricher must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	if recorder == nil {
		return nil, errors.New("usecase: turn recorder must not be nil")
	}
	s := &ChatService{
		enricher:        enricher,
		provider:        p,
		recorder:        recorder,
		historyWindow:   defaultHistoryWindow,
		generateTimeout: defaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var timeNow = time.Now

// Chat runs one full gateway turn. Persistence runs after generation and is
// awaited before returning, but its failures never change the response; only
// validation, authentication, and provider failures terminate the request.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return ChatOutput{}, newError(ErrorUnauthenticated, "missing_user", nil)
	}
	if len(in.Messages) == 0 {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_messages", nil)
	}
	last := in.Messages[len(in.Messages)-1]
	if last.Role != domain.RoleUser {
		return ChatOutput{}, newError(ErrorInvalidInput, "last_message_not_user", nil)
	}
	userText := strings.TrimSpace(last.Content)
	if userText == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_user_message", nil)
	}

	contextTag := strings.TrimSpace(in.Context)
	if contextTag == "" {
		contextTag = contextGeneral
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = defaultLanguage
	}

	// Enriching. Connector failures degrade to an empty block inside the
	// engine; nothing here can fail the turn.
	block := s.enricher.BuildContext(ctx, userText)

	// Generating.
	gctx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()
	resp, err := s.provider.Generate(gctx, provider.Request{
		SystemPrompt:    buildSystemPrompt(contextTag, language, timeNow()),
		EnrichmentBlock: block,
		History:         provider.TrimHistory(in.Messages, s.historyWindow),
		Language:        language,
	})
	if err != nil {
		return ChatOutput{}, classifyProviderError(err)
	}

	// Persisting, best-effort: awaited here so no task outlives the request,
	// but the answer is already final whatever happens in the store.
	convID := s.recorder.AppendTurn(ctx, in.ConversationID, in.UserID, userText, resp.Text, contextTag)

	return ChatOutput{
		Answer:         resp.Text,
		ConversationID: convID,
		Context:        contextTag,
		Provider:       resp.Provider,
		Model:          resp.Model,
	}, nil
}

// classifyProviderError separates "misconfigured" (no credentials, unknown
// provider) from "backend rejected the call", and picks rate limits out of
// the latter so callers can present them distinctly.
func classifyProviderError(err error) error {
	if provider.IsUnavailable(err) {
		return newError(ErrorProviderUnavailable, "provider_not_configured", err)
	}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() == 429 {
		return newError(ErrorRateLimited, "provider_rate_limited", err)
	}
	return newError(ErrorUpstream, "provider_error", err)
}
