// Package handler adapts API Gateway proxy events to the chat use case.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"frc-chat-gateway/internal/domain"
	"frc-chat-gateway/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// chatUseCase is the narrow use-case interface the handler depends on.
type chatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	uc chatUseCase
}

func NewHandler(uc chatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

type chatRequest struct {
	Messages       []domain.ChatMessage `json:"messages"`
	Context        string               `json:"context"`
	ConversationID string               `json:"conversationId"`
	Language       string               `json:"language"`
}

type chatResponse struct {
	Messages       []domain.ChatMessage `json:"messages"`
	Context        string               `json:"context"`
	ConversationID string               `json:"conversationId,omitempty"`
	Timestamp      string               `json:"timestamp"`
	Model          string               `json:"model"`
	Provider       string               `json:"provider"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// Handle processes one chat turn request.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event)

	userID := userIDFrom(event)
	if userID == "" {
		return respondError(corrID, http.StatusUnauthorized, &usecase.Error{Code: usecase.ErrorUnauthenticated, Reason: "missing_identity"}), nil
	}

	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respondError(corrID, http.StatusBadRequest, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "malformed_body", Err: err}), nil
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		UserID:         userID,
		Messages:       req.Messages,
		Context:        req.Context,
		ConversationID: req.ConversationID,
		Language:       req.Language,
	})
	if err != nil {
		slog.Warn("chat turn failed", "correlationId", corrID, "err", err)
		return respondError(corrID, statusFor(err), err), nil
	}

	final := append(append([]domain.ChatMessage{}, req.Messages...), domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: out.Answer,
	})
	return respondJSON(corrID, http.StatusOK, chatResponse{
		Messages:       final,
		Context:        out.Context,
		ConversationID: out.ConversationID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Model:          out.Model,
		Provider:       out.Provider,
	}), nil
}

// userIDFrom extracts the caller identity set by the API Gateway authorizer,
// falling back to the X-User-Id header for direct invocations.
func userIDFrom(event events.APIGatewayProxyRequest) string {
	if auth := event.RequestContext.Authorizer; auth != nil {
		if claims, ok := auth["claims"].(map[string]any); ok {
			if sub, ok := claims["sub"].(string); ok && sub != "" {
				return sub
			}
		}
		if sub, ok := auth["principalId"].(string); ok && sub != "" {
			return sub
		}
	}
	for k, v := range event.Headers {
		if strings.EqualFold(k, "x-user-id") && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func correlationID(event events.APIGatewayProxyRequest) string {
	for k, v := range event.Headers {
		if strings.EqualFold(k, correlationHeader) && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func statusFor(err error) int {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthenticated:
		return http.StatusUnauthorized
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorProviderUnavailable:
		return http.StatusServiceUnavailable
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(corrID string, status int, err error) events.APIGatewayProxyResponse {
	body := errorResponse{Error: string(usecase.ErrorInternal)}
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		body.Error = string(ucErr.Code)
		body.Reason = ucErr.Reason
		if ucErr.Err != nil && status != http.StatusInternalServerError {
			body.Details = ucErr.Err.Error()
		}
	}
	return respondJSON(corrID, status, body)
}

func respondJSON(corrID string, status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}
