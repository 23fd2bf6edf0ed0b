package agentmesh

import (
	"context"
	"encoding/json"
	"fmt"
)

// Stage classifies when a tool may run.
type Stage string

const (
	// PreProcess tools are callable by the LLM through tool-calls during
	// the reason/act loop.
	PreProcess Stage = "pre_process"
	// PostProcess tools run automatically, in registration order, once
	// after the agent produces its final answer. They receive an
	// AgentView instead of LLM-provided arguments.
	PostProcess Stage = "post_process"
)

// Tool defines a capability invokable during the pre-process phase (the
// LLM's reason/act loop). Execute must not panic; failures are reported
// through ToolResult.Status, never by returning a non-nil error for
// ordinary tool failures (a non-nil error indicates the call could not be
// dispatched at all, e.g. malformed arguments it cannot even parse).
type Tool interface {
	// Definitions returns the ToolDefinitions this tool registers. Each
	// carries its own Stage.
	Definitions() []ToolDefinition
	// Execute runs a PreProcess-stage tool call by name.
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// PostProcessTool is implemented by tools that run automatically after an
// agent's final answer. ExecutePost receives an AgentView instead of
// LLM-provided arguments — the agent is the tool's context, per spec.
type PostProcessTool interface {
	Tool
	ExecutePost(ctx context.Context, view AgentView) (ToolResult, error)
}

// AgentView is the read-only capability passed to PostProcess tools. It
// breaks the cyclic reference between Agent and Tool: tools see the
// agent's final state without holding a back-pointer into the Agent type.
type AgentView interface {
	Name() string
	Messages() []Message
	FinalOutput() string
	CapturedActions() []AgentAction
}

// ToolRegistry resolves tool names to tool instances and enforces the
// PreProcess/PostProcess stage boundary: a PreProcess tool must never be
// invoked during the post-process phase, and vice versa. The registry is
// read-only after startup.
type ToolRegistry struct {
	tools []Tool
	defs  map[string]ToolDefinition
	owner map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		defs:  make(map[string]ToolDefinition),
		owner: make(map[string]Tool),
	}
}

// Add registers a tool and all the ToolDefinitions it declares.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
	for _, d := range t.Definitions() {
		r.defs[d.Name] = d
		r.owner[d.Name] = t
	}
}

// PreProcessDefinitions returns the ToolDefinitions the LLM may call
// during the reason/act loop (Stage == PreProcess), in registration order.
func (r *ToolRegistry) PreProcessDefinitions() []ToolDefinition {
	var out []ToolDefinition
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Stage == PreProcess {
				out = append(out, d)
			}
		}
	}
	return out
}

// PostProcessTools returns the registered PostProcessTool instances, in
// registration order, for the post-answer phase.
func (r *ToolRegistry) PostProcessTools() []PostProcessTool {
	var out []PostProcessTool
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Stage != PostProcess {
				continue
			}
			if pp, ok := t.(PostProcessTool); ok {
				out = append(out, pp)
			}
			break
		}
	}
	return out
}

// Subset returns a new registry containing only the tools that declare at
// least one of the given definition names. Used to scope a team's global
// tool catalog down to the names an individual agent's configuration lists.
func (r *ToolRegistry) Subset(names []string) *ToolRegistry {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := NewToolRegistry()
	seen := make(map[Tool]bool)
	for _, t := range r.tools {
		if seen[t] {
			continue
		}
		for _, d := range t.Definitions() {
			if want[d.Name] {
				out.Add(t)
				seen[t] = true
				break
			}
		}
	}
	return out
}

// Execute dispatches a PreProcess tool call by name. It returns a
// synthesized error ToolResult (not a Go error) for unknown names or a
// stage mismatch, so the Executor can fold the failure into a normal
// "tool" message and let the agent react.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	def, ok := r.defs[name]
	if !ok {
		return ToolResult{ToolName: name, Status: "error", ErrorMessage: fmt.Sprintf("unknown tool: %s", name)}, nil
	}
	if def.Stage != PreProcess {
		return ToolResult{ToolName: name, Status: "error", ErrorMessage: fmt.Sprintf("tool %s is not callable during pre-process", name)}, nil
	}
	return r.owner[name].Execute(ctx, name, args)
}
