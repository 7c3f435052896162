package domain

import "time"

// Message is a single persisted conversation message.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Conversation is a persisted chat thread owned by a single user. Title is
// derived from the first user message at creation time and never overwritten.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Context   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}
