package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"frc-chat-gateway/internal/domain"
)

const titleMaxLen = 50

// ConversationStore is the abstract persistence contract consumed by the
// turn recorder.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title, contextTag string) (string, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	FindConversation(ctx context.Context, id string) (*domain.Conversation, error)
}

// TurnRecorder appends completed turns to conversation storage with
// best-effort semantics: every failure is demoted to a warning so a storage
// outage never costs the user an already-generated answer.
type TurnRecorder struct {
	store ConversationStore
}

func NewTurnRecorder(store ConversationStore) (*TurnRecorder, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	return &TurnRecorder{store: store}, nil
}

// AppendTurn persists one user/assistant message pair, creating the
// conversation on first use. It returns the conversation id the messages were
// written to, or "" when nothing was persisted (unknown id, store failure).
// The user message is written before the assistant message so chronological
// order and role alternation survive in storage.
func (r *TurnRecorder) AppendTurn(ctx context.Context, conversationID, userID, userText, assistantText, contextTag string) string {
	conversationID = strings.TrimSpace(conversationID)

	if conversationID == "" {
		id, err := r.store.CreateConversation(ctx, userID, deriveTitle(userText), contextTag)
		if err != nil {
			slog.Warn("persistence degraded: create conversation failed", "err", err)
			return ""
		}
		conversationID = id
	} else {
		conv, err := r.store.FindConversation(ctx, conversationID)
		if err != nil {
			slog.Warn("persistence degraded: conversation lookup failed", "conversationId", conversationID, "err", err)
			return ""
		}
		if conv == nil {
			// Unknown id: the answer still goes back to the caller, the
			// turn is just not recorded anywhere.
			slog.Warn("persistence skipped: conversation not found", "conversationId", conversationID)
			return ""
		}
	}

	if err := r.store.AppendMessage(ctx, conversationID, domain.RoleUser, userText); err != nil {
		slog.Warn("persistence degraded: append user message failed", "conversationId", conversationID, "err", err)
		return conversationID
	}
	if err := r.store.AppendMessage(ctx, conversationID, domain.RoleAssistant, assistantText); err != nil {
		slog.Warn("persistence degraded: append assistant message failed", "conversationId", conversationID, "err", err)
	}
	return conversationID
}

// deriveTitle builds the conversation title from the first user message:
// first 50 characters plus an ellipsis marker when truncated.
func deriveTitle(userText string) string {
	title := strings.TrimSpace(userText)
	runes := []rune(title)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	if title == "" {
		return "Yeni Konuşma"
	}
	return title
}
