package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion. Zero values leave provider defaults.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Provider is a text-completion oracle. messages are oldest first and may
// start with a system message.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	Name() string
}
