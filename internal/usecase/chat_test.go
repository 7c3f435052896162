package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/provider"
)

type fakeEnricher struct {
	block    string
	lastText string
	calls    int
}

func (f *fakeEnricher) BuildContext(_ context.Context, userText string) string {
	f.calls++
	f.lastText = userText
	return f.block
}

type fakeProvider struct {
	resp    provider.Response
	err     error
	lastReq provider.Request
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, req provider.Request) (provider.Response, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

type fakeRecorder struct {
	ret           string
	calls         int
	lastConvID    string
	lastUserID    string
	lastUserText  string
	lastAssistant string
	lastContext   string
}

func (f *fakeRecorder) AppendTurn(_ context.Context, conversationID, userID, userText, assistantText, contextTag string) string {
	f.calls++
	f.lastConvID = conversationID
	f.lastUserID = userID
	f.lastUserText = userText
	f.lastAssistant = assistantText
	f.lastContext = contextTag
	return f.ret
}

func newService(t *testing.T, e *fakeEnricher, p *fakeProvider, r *fakeRecorder, opts ...ChatOption) *ChatService {
	t.Helper()
	s, err := NewChatService(e, p, r, opts...)
	require.NoError(t, err)
	return s
}

func userMsg(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: content}
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
}

func TestChat_Validation(t *testing.T) {
	s := newService(t, &fakeEnricher{}, &fakeProvider{}, &fakeRecorder{})

	_, err := s.Chat(context.Background(), ChatInput{Messages: []domain.ChatMessage{userMsg("soru")}})
	requireCode(t, err, ErrorUnauthenticated)

	_, err = s.Chat(context.Background(), ChatInput{UserID: "u1"})
	requireCode(t, err, ErrorInvalidInput)

	_, err = s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: []domain.ChatMessage{
		{Role: domain.RoleAssistant, Content: "cevap"},
	}})
	requireCode(t, err, ErrorInvalidInput)

	_, err = s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: []domain.ChatMessage{userMsg("  ")}})
	requireCode(t, err, ErrorInvalidInput)
}

func TestChat_HappyPath(t *testing.T) {
	prev := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	defer func() { timeNow = prev }()

	enricher := &fakeEnricher{block: "=== RETRIEVED CONTEXT BEGIN ===\n[The Blue Alliance]\nFRC Team 9024\n=== RETRIEVED CONTEXT END ==="}
	p := &fakeProvider{resp: provider.Response{Text: "Takım 9024 İstanbul'dan.", Provider: "gemini", Model: "gemini-2.5-flash"}}
	recorder := &fakeRecorder{ret: "conv-new"}
	s := newService(t, enricher, p, recorder)

	out, err := s.Chat(context.Background(), ChatInput{
		UserID:   "user-1",
		Messages: []domain.ChatMessage{userMsg("Takım 9024 hakkında bilgi ver")},
	})
	require.NoError(t, err)

	require.Equal(t, "Takım 9024 İstanbul'dan.", out.Answer)
	require.Equal(t, "conv-new", out.ConversationID)
	require.Equal(t, "general", out.Context, "missing context defaults to general")
	require.Equal(t, "gemini", out.Provider)
	require.Equal(t, "gemini-2.5-flash", out.Model)

	require.Equal(t, "Takım 9024 hakkında bilgi ver", enricher.lastText)
	require.Equal(t, enricher.block, p.lastReq.EnrichmentBlock)
	require.Contains(t, p.lastReq.SystemPrompt, "2026")
	require.Contains(t, p.lastReq.SystemPrompt, "Türkçe")
	require.Equal(t, "tr", p.lastReq.Language)

	require.Equal(t, 1, recorder.calls)
	require.Equal(t, "user-1", recorder.lastUserID)
	require.Equal(t, "Takım 9024 hakkında bilgi ver", recorder.lastUserText)
	require.Equal(t, "Takım 9024 İstanbul'dan.", recorder.lastAssistant)
	require.Equal(t, "general", recorder.lastContext)
}

func TestChat_EnglishPrompt(t *testing.T) {
	p := &fakeProvider{resp: provider.Response{Text: "ok"}}
	s := newService(t, &fakeEnricher{}, p, &fakeRecorder{})

	_, err := s.Chat(context.Background(), ChatInput{
		UserID:   "u1",
		Language: "en",
		Context:  "strategy",
		Messages: []domain.ChatMessage{userMsg("scouting tips?")},
	})
	require.NoError(t, err)
	require.Contains(t, p.lastReq.SystemPrompt, "Respond in English")
	require.Contains(t, p.lastReq.SystemPrompt, "competition strategy")
}

func TestChat_HistoryWindow(t *testing.T) {
	p := &fakeProvider{resp: provider.Response{Text: "ok"}}
	s := newService(t, &fakeEnricher{}, p, &fakeRecorder{}, WithHistoryWindow(2))

	msgs := []domain.ChatMessage{
		userMsg("one"),
		{Role: domain.RoleAssistant, Content: "two"},
		userMsg("three"),
		{Role: domain.RoleAssistant, Content: "four"},
		userMsg("five"),
	}
	_, err := s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: msgs})
	require.NoError(t, err)

	require.Len(t, p.lastReq.History, 2)
	require.Equal(t, "five", p.lastReq.History[1].Content)
}

func TestChat_ExistingConversationNotFound(t *testing.T) {
	// The store does not know the id: the answer is still returned, only the
	// conversation id in the response goes empty.
	p := &fakeProvider{resp: provider.Response{Text: "cevap"}}
	recorder := &fakeRecorder{ret: ""}
	s := newService(t, &fakeEnricher{}, p, recorder)

	out, err := s.Chat(context.Background(), ChatInput{
		UserID:         "u1",
		ConversationID: "ghost",
		Messages:       []domain.ChatMessage{userMsg("soru")},
	})
	require.NoError(t, err)
	require.Equal(t, "cevap", out.Answer)
	require.Empty(t, out.ConversationID)
	require.Equal(t, "ghost", recorder.lastConvID)
}

func TestChat_ProviderUnavailable(t *testing.T) {
	p := &fakeProvider{err: &provider.UnavailableError{Provider: "gemini", Reason: "api key not provisioned"}}
	recorder := &fakeRecorder{}
	s := newService(t, &fakeEnricher{}, p, recorder)

	_, err := s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: []domain.ChatMessage{userMsg("soru")}})
	requireCode(t, err, ErrorProviderUnavailable)
	require.Zero(t, recorder.calls, "failed turns are never persisted")
}

func TestChat_ProviderRateLimited(t *testing.T) {
	p := &fakeProvider{err: &provider.StatusError{Provider: "gemini", StatusCode: 429, Body: "quota"}}
	recorder := &fakeRecorder{}
	s := newService(t, &fakeEnricher{}, p, recorder)

	_, err := s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: []domain.ChatMessage{userMsg("soru")}})
	requireCode(t, err, ErrorRateLimited)
	require.Zero(t, recorder.calls)
}

func TestChat_ProviderUpstreamError(t *testing.T) {
	cases := []error{
		&provider.StatusError{Provider: "gemini", StatusCode: 500, Body: "boom"},
		errors.New("connection reset"),
	}
	for _, provErr := range cases {
		p := &fakeProvider{err: provErr}
		s := newService(t, &fakeEnricher{}, p, &fakeRecorder{})

		_, err := s.Chat(context.Background(), ChatInput{UserID: "u1", Messages: []domain.ChatMessage{userMsg("soru")}})
		requireCode(t, err, ErrorUpstream)
	}
}
