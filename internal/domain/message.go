package domain

import "strings"

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single caller-supplied conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// QueryText returns the trimmed content of the first user message.
func QueryText(messages []Message) (string, error) {
	for _, m := range messages {
		if m.Role == RoleUser {
			return strings.TrimSpace(m.Content), nil
		}
	}
	return "", ErrNoQuery
}

// ProviderKind selects the chat completion request shape.
type ProviderKind string

const (
	// ProviderDirect talks to the provider API: model in body, bearer auth.
	ProviderDirect ProviderKind = "direct"
	// ProviderGateway talks to a hosted deployment: model bound to the URL, api-key header.
	ProviderGateway ProviderKind = "gateway"
)

// Valid reports whether k is a known provider kind.
func (k ProviderKind) Valid() bool {
	return k == ProviderDirect || k == ProviderGateway
}

// ModelSelector identifies the completion model.
type ModelSelector struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CompletionRequest is one streaming chat completion call: the system prompt
// followed by the caller's messages, unchanged.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	Model        ModelSelector
	Temperature  float32
}
