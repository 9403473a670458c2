package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON object the model produced; the tool layer decodes it against the
// tool's own schema.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single message in a conversation. Assistant messages may
// carry tool calls; tool messages carry the result of exactly one call,
// identified by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDef describes a tool the model may call. Parameters is a JSON Schema
// object in map form.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// DecisionRequest contains the parameters for one decision step.
type DecisionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDef
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Decision is the model's answer for one step: either a final message, or
// one or more tool calls to execute before deciding again.
type Decision struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
