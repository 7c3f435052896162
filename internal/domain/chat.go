package domain

// Message roles. Persisted conversations only contain user and assistant
// messages; system messages exist solely inside provider requests.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM provider adapters.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
