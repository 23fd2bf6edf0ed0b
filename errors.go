package agentmesh

import "fmt"

// TransportError reports a network/connection failure reaching a Model
// Port. It is fatal for the task: the Executor surfaces it as an "error"
// event and the Orchestrator terminates the run with task_result{failed}.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a non-2xx response from a Model Port. The message
// is included verbatim in the "error" event published to subscribers.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ParseError reports malformed JSON from the model: either tool-call
// arguments or a decision-LLM response. Callers recover locally per
// spec — empty tool arguments become "{}", a malformed decision becomes
// "id: -1" — so ParseError is informational, never fatal.
type ParseError struct {
	Context string // "tool_arguments" | "decision"
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %v: %q", e.Context, e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ToolError reports a tool that returned ToolResult{Status: "error"}.
// It is not fatal: the Executor folds it into a "tool" message and the
// agent's reason/act loop continues.
type ToolError struct {
	ToolName string
	Message  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error (%s): %s", e.ToolName, e.Message)
}

// StepLimitExceeded reports that an agent's or a team's step budget was
// reached. It is fatal for the task.
type StepLimitExceeded struct {
	Scope string // "agent" | "team"
	Name  string
	Limit int
}

func (e *StepLimitExceeded) Error() string {
	return fmt.Sprintf("step limit exceeded: %s %q hit max_steps=%d", e.Scope, e.Name, e.Limit)
}

// ConfigError reports an unknown team, unknown tool, or unknown model
// referenced from team configuration. It is fatal at task start and is
// reported via a user_task_submit{failed} frame before any agent runs.
type ConfigError struct {
	Kind string // "team" | "tool" | "model"
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: unknown %s %q", e.Kind, e.Name)
}

// ErrHalt is returned by a PreCallGuard or PostCallGuard to stop a turn
// short: the Executor skips the model call (or discards its result) and
// folds Response into the agent's final answer instead of an error event.
type ErrHalt struct {
	Response string
}

func (e *ErrHalt) Error() string { return "halted: " + e.Response }
