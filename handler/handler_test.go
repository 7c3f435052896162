package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/usecase"
)

type fakeUseCase struct {
	out    usecase.ChatOutput
	err    error
	lastIn usecase.ChatInput
	called bool
}

func (f *fakeUseCase) Chat(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	f.called = true
	f.lastIn = in
	return f.out, f.err
}

func makeEvent(body string, headers map[string]string) events.APIGatewayProxyRequest {
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["x-user-id"]; !ok {
		headers["x-user-id"] = "user-1"
	}
	return events.APIGatewayProxyRequest{Body: body, Headers: headers}
}

func decodeBody[T any](t *testing.T, res events.APIGatewayProxyResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(res.Body), &out))
	return out
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &fakeUseCase{out: usecase.ChatOutput{
		Answer:         "Takım 9024 İstanbul'dan.",
		ConversationID: "conv-1",
		Context:        "general",
		Provider:       "gemini",
		Model:          "gemini-2.5-flash",
	}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"Takım 9024 hakkında bilgi ver"}],"language":"tr"}`
	res, err := h.Handle(context.Background(), makeEvent(body, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/json", res.Headers["Content-Type"])
	require.NotEmpty(t, res.Headers[correlationHeader])

	out := decodeBody[chatResponse](t, res)
	require.Len(t, out.Messages, 2)
	require.Equal(t, domain.RoleAssistant, out.Messages[1].Role)
	require.Equal(t, "Takım 9024 İstanbul'dan.", out.Messages[1].Content)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, "gemini", out.Provider)
	require.NotEmpty(t, out.Timestamp)

	require.Equal(t, "user-1", uc.lastIn.UserID)
	require.Equal(t, "tr", uc.lastIn.Language)
}

func TestHandle_OmitsEmptyConversationID(t *testing.T) {
	uc := &fakeUseCase{out: usecase.ChatOutput{Answer: "cevap", Context: "general"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), makeEvent(`{"messages":[{"role":"user","content":"soru"}]}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotContains(t, res.Body, "conversationId")
}

func TestHandle_MissingIdentity(t *testing.T) {
	h, err := NewHandler(&fakeUseCase{})
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{Body: "{}"})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	out := decodeBody[errorResponse](t, res)
	require.Equal(t, string(usecase.ErrorUnauthenticated), out.Error)
}

func TestHandle_AuthorizerClaims(t *testing.T) {
	uc := &fakeUseCase{out: usecase.ChatOutput{Answer: "ok"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := events.APIGatewayProxyRequest{
		Body: `{"messages":[{"role":"user","content":"soru"}]}`,
		RequestContext: events.APIGatewayProxyRequestContext{
			Authorizer: map[string]any{"claims": map[string]any{"sub": "cognito-user"}},
		},
	}
	_, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "cognito-user", uc.lastIn.UserID)
}

func TestHandle_MalformedBody(t *testing.T) {
	uc := &fakeUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), makeEvent("{not json", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.False(t, uc.called)

	out := decodeBody[errorResponse](t, res)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "malformed_body", out.Reason)
}

func TestHandle_ErrorMapping(t *testing.T) {
	cases := []struct {
		code   usecase.ErrorCode
		status int
	}{
		{usecase.ErrorInvalidInput, http.StatusBadRequest},
		{usecase.ErrorUnauthenticated, http.StatusUnauthorized},
		{usecase.ErrorRateLimited, http.StatusTooManyRequests},
		{usecase.ErrorProviderUnavailable, http.StatusServiceUnavailable},
		{usecase.ErrorUpstream, http.StatusBadGateway},
		{usecase.ErrorInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			uc := &fakeUseCase{err: &usecase.Error{Code: tc.code, Reason: "because"}}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			res, err := h.Handle(context.Background(), makeEvent(`{"messages":[{"role":"user","content":"soru"}]}`, nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, res.StatusCode)

			out := decodeBody[errorResponse](t, res)
			require.Equal(t, string(tc.code), out.Error)
		})
	}
}

func TestHandle_UnclassifiedErrorIsInternal(t *testing.T) {
	uc := &fakeUseCase{err: errors.New("boom")}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), makeEvent(`{"messages":[{"role":"user","content":"soru"}]}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)

	out := decodeBody[errorResponse](t, res)
	require.Equal(t, string(usecase.ErrorInternal), out.Error)
	require.Empty(t, out.Details, "internal details never leak")
}

func TestHandle_CorrelationIDEchoed(t *testing.T) {
	uc := &fakeUseCase{out: usecase.ChatOutput{Answer: "ok"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), makeEvent(
		`{"messages":[{"role":"user","content":"soru"}]}`,
		map[string]string{"x-correlation-id": "corr-42"},
	))
	require.NoError(t, err)
	require.Equal(t, "corr-42", res.Headers[correlationHeader], "incoming id wins regardless of header case")
}
