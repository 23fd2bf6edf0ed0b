package agentmesh

import "encoding/json"

// TaskStatus is the lifecycle state of a Task row.
type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
	TaskPaused  TaskStatus = "paused"
)

// Task is a single user-submitted unit of work. It is created once by a
// TaskWorker; its Status is mutated only by the TaskWorker and is never
// deleted by the core.
type Task struct {
	TaskID     string     `json:"task_id"`
	Status     TaskStatus `json:"status"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	SubmitTime int64      `json:"submit_time"`
}

// TaskQuery filters Task rows for TaskStore.Query.
type TaskQuery struct {
	Page     int // 1-indexed
	PageSize int // 1..100
	Status   TaskStatus
	NameLike string // substring match against Task.Name
}

// TaskPage is a single page of TaskStore.Query results, sorted by
// SubmitTime descending.
type TaskPage struct {
	Total    int
	Page     int
	PageSize int
	Tasks    []Task
}

// AgentOutput pairs an agent's name with the final answer it produced
// during a team run, in the order agents were invoked.
type AgentOutput struct {
	AgentName string
	Output    string
}

// TeamContext is the per-run state a TeamOrchestrator owns exclusively for
// the duration of one task. It is never shared across runs.
type TeamContext struct {
	Name         string
	Description  string
	Rule         string
	ModelRef     string
	MaxSteps     int
	CurrentSteps int
	UserTask     string
	AgentOutputs []AgentOutput
}

// ContentPart is one entry of a multi-part Message.Parts (text or image).
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image"
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"` // base64, for image parts
}

// Message is one entry of an agent's conversation history.
type Message struct {
	Role       string        `json:"role"` // "system", "user", "assistant", "tool"
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"` // set instead of Content for multi-part messages
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// ToolCall is one function call the model asked to make. Arguments may
// arrive as fragments across stream Chunks and are concatenated by Index
// before the call is dispatched.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of one ToolCall execution.
type ToolResult struct {
	ToolName      string  `json:"tool_name"`
	InputParams   string  `json:"input_params"`
	Output        string  `json:"output"`
	Status        string  `json:"status"` // "success" | "error"
	ErrorMessage  string  `json:"error_message,omitempty"`
	ExecutionTime float64 `json:"execution_time_s"`
}

// ActionType identifies the kind of AgentAction captured during a turn.
type ActionType string

const (
	ActionToolUse ActionType = "tool_use"
	ActionThought ActionType = "thought"
	ActionMessage ActionType = "message"
)

// AgentAction is one append-only entry in an agent's captured history for
// a run: either a tool invocation, a thought, or a final message.
type AgentAction struct {
	AgentName  string
	Type       ActionType
	Thought    string
	ToolResult *ToolResult
}

// Usage tracks token consumption for a single model call. Estimates
// produced by the Executor's context trimmer are conservative upper
// bounds; they are not guaranteed to equal provider-reported usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolDefinition describes one callable tool to the model: its name, a
// natural-language description, and a JSON-schema parameter spec.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Stage       Stage           `json:"-"`
}

// UserMessage, SystemMessage, AssistantMessage, and ToolResultMessage are
// convenience constructors for the Message shapes the Executor assembles.
func UserMessage(text string) Message      { return Message{Role: "user", Content: text} }
func SystemMessage(text string) Message    { return Message{Role: "system", Content: text} }
func AssistantMessage(text string) Message { return Message{Role: "assistant", Content: text} }

func ToolResultMessage(callID, content string) Message {
	return Message{Role: "tool", Content: content, ToolCallID: callID}
}
