package llm

import "context"

// Role of a conversation turn. Providers map these onto their own vocabulary.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of the prompt conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is the provider-neutral request the extractor sends.
type CompletionRequest struct {
	System      string
	Messages    []Message // example exchange first, user text last
	Temperature float32
	JSONMode    bool // ask for a bare JSON object where the provider supports it
}

// Completer is the transport to a completion service. Complete drains any streamed
// fragments in arrival order and returns their concatenation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// StrictJSON reports whether replies are requested as bare JSON objects.
	StrictJSON() bool
	// Model names the configured model, for logs and display.
	Model() string
}
