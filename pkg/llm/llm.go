package llm

import (
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

// Chat roles
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single role-tagged entry in a conversation transcript.
// Messages are treated as immutable once appended to an actor's history.
type Message struct {
	// Role is one of system, user, assistant, or tool
	Role Role

	// Content is the message text (may be empty for tool-call requests)
	Content string

	// ToolCalls carries function-call requests issued by the assistant
	ToolCalls []ToolCall

	// ToolCallID links a tool-result message back to the originating call
	ToolCallID string

	// Name is the function name for tool-result messages
	Name string
}

// NewMessage creates a plain text message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ToolCall is a model-initiated request to invoke an external function.
type ToolCall struct {
	// ID is the provider-assigned call identifier
	ID string

	// Type is the call type; currently always "function"
	Type string

	// Function holds the requested function name and arguments
	Function FunctionCall
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name string

	// Arguments is a JSON object string with flat string/number/bool values
	Arguments string
}

// Tool is a function definition advertised to the model.
type Tool struct {
	// Type is the tool type; currently always "function"
	Type string

	// Function describes the callable function
	Function FunctionDefinition
}

// FunctionDefinition describes a callable function to the model.
type FunctionDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON-schema-like object describing the arguments
	Parameters any
}

// ChatRequest is the provider-independent completion request.
type ChatRequest struct {
	Model            string
	Messages         []Message
	Temperature      float32
	MaxTokens        int
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32

	// Tools are the function definitions available for this request
	Tools []Tool

	// ToolChoice controls tool selection ("auto" when tools are present)
	ToolChoice string
}

// ChatResponse is either a plain assistant message or a tool-call request.
type ChatResponse struct {
	// Content is the assistant text (may accompany tool calls)
	Content string

	// ToolCalls is non-empty when the model requests function invocations
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the response carries function-call requests.
func (r ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// APIError is a structured error payload surfaced by a provider.
type APIError struct {
	Message string
	Type    string
	Code    string
}

func (e *APIError) Error() string {
	if e.Type != "" || e.Code != "" {
		return fmt.Sprintf("api error (type=%s, code=%s): %s", e.Type, e.Code, e.Message)
	}
	return e.Message
}
