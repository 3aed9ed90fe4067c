// ABOUTME: Request/Response types and the Client interface for text-generation service handles.
// ABOUTME: A nil ResponseSchema means freeform text; a non-nil schema requests schema-constrained JSON output.

package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is a completion request routed to a provider adapter.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature *float64
	MaxTokens   int

	// ResponseSchema, when non-nil, asks the provider for JSON output
	// conforming to the given JSON schema. SchemaName labels the schema for
	// providers that require a name.
	ResponseSchema json.RawMessage
	SchemaName     string
}

// Usage reports token accounting for a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's completion result.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client is a text-generation service handle. Implementations wrap one
// provider SDK; callers hold separate handles per concern (script writing,
// planning, code generation, repair) and inject them explicitly rather than
// reaching for ambient globals.
type Client interface {
	// Name identifies the provider for logging and error wrapping.
	Name() string

	// Complete sends the request and returns the full response. Errors are
	// classified into the taxonomy in errors.go so retry policies can
	// distinguish transient failures from fatal ones.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Float returns a pointer to v, for optional Temperature fields.
func Float(v float64) *float64 { return &v }
