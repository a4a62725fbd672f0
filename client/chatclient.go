package client

import "context"

// Roles used in ChatMsg.  Providers translate these into whatever
// their API expects.
const (
	RoleUser = "USER"
	RoleAI   = "ASSISTANT"
)

// ChatClient defines the interface for chat operations.
// Implementations of ChatClient (such as the Gemini, OpenAI, and
// Perplexity clients) must implement this method to generate a
// complete chat response.
type ChatClient interface {
	CompleteChat(ctx context.Context, model, sysmsg string, messages []ChatMsg) (string, error)
}

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string
	Content string
}
