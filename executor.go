package agentmesh

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// AgentStreamExecutor runs one agent's reason/act loop against a
// ModelPort: it streams model responses, accumulates tool-call deltas
// across stream chunks, dispatches PreProcess tools, feeds results back,
// and enforces both the agent's and the enclosing team's step budgets.
type AgentStreamExecutor struct {
	model      ModelPort
	bus        *EventBus
	logger     *slog.Logger
	preGuards  []PreCallGuard
	postGuards []PostCallGuard
}

// ExecutorOption configures an AgentStreamExecutor.
type ExecutorOption func(*AgentStreamExecutor)

// WithPreCallGuards installs guards checked, in order, before each model
// call. The first ErrHalt short-circuits the call.
func WithPreCallGuards(guards ...PreCallGuard) ExecutorOption {
	return func(x *AgentStreamExecutor) { x.preGuards = append(x.preGuards, guards...) }
}

// WithPostCallGuards installs guards checked, in order, against the
// accumulated response of each turn. The first ErrHalt replaces the turn's
// content; any guard may also rewrite the response in place (e.g. trimming
// tool calls).
func WithPostCallGuards(guards ...PostCallGuard) ExecutorOption {
	return func(x *AgentStreamExecutor) { x.postGuards = append(x.postGuards, guards...) }
}

// NewAgentStreamExecutor creates an Executor bound to model, publishing
// turn/tool/result events to bus. A nil bus disables event publication
// (used by tests that only assert the returned answer or error).
func NewAgentStreamExecutor(model ModelPort, bus *EventBus, logger *slog.Logger, opts ...ExecutorOption) *AgentStreamExecutor {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	x := &AgentStreamExecutor{model: model, bus: bus, logger: logger}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// checkPreCall runs all installed PreCallGuards against req. The first
// *ErrHalt stops the chain and is returned to the caller.
func (x *AgentStreamExecutor) checkPreCall(ctx context.Context, req *Request) error {
	for _, g := range x.preGuards {
		if err := g.PreCall(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// checkPostCall runs all installed PostCallGuards against resp, allowing
// each to rewrite it in place. The first *ErrHalt stops the chain and is
// returned to the caller.
func (x *AgentStreamExecutor) checkPostCall(ctx context.Context, resp *Response) error {
	for _, g := range x.postGuards {
		if err := g.PostCall(ctx, resp); err != nil {
			return err
		}
	}
	return nil
}

func (x *AgentStreamExecutor) publish(taskID, kind string, data map[string]any) {
	if x.bus == nil {
		return
	}
	x.bus.Publish(Event{Type: kind, TaskID: taskID, Data: data})
}

type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

// Run executes agent's reason/act loop for userMessage, against team's
// shared step budget, publishing events tagged with taskID. It returns
// the agent's final answer, or an error (TransportError, ProviderError,
// StepLimitExceeded) for a non-recoverable failure.
func (x *AgentStreamExecutor) Run(ctx context.Context, taskID string, agent *Agent, team *TeamContext, userMessage string) (string, error) {
	turnN := 0
	firstTurn := true

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		turnN++

		if turnN > agent.MaxSteps() {
			err := &StepLimitExceeded{Scope: "agent", Name: agent.Name(), Limit: agent.MaxSteps()}
			x.publish(taskID, "error", map[string]any{"message": err.Error()})
			return "", err
		}
		if team != nil && team.CurrentSteps >= team.MaxSteps {
			err := &StepLimitExceeded{Scope: "team", Name: team.Name, Limit: team.MaxSteps}
			x.publish(taskID, "error", map[string]any{"message": err.Error()})
			return "", err
		}
		if team != nil {
			team.CurrentSteps++
		}
		x.publish(taskID, "turn_start", map[string]any{"turn_n": turnN})

		if firstTurn {
			agent.appendMessage(UserMessage(userMessage))
			firstTurn = false
		}

		req := Request{
			ModelName:   agent.ModelRef(),
			Messages:    x.trimmedRequestMessages(agent),
			Temperature: 1,
			Tools:       agent.Tools().PreProcessDefinitions(),
		}

		if err := x.checkPreCall(ctx, &req); err != nil {
			var halt *ErrHalt
			if !isErrHalt(err, &halt) {
				x.publish(taskID, "error", map[string]any{"message": err.Error()})
				return "", err
			}
			agent.appendMessage(AssistantMessage(halt.Response))
			agent.appendAction(AgentAction{AgentName: agent.Name(), Type: ActionMessage, Thought: halt.Response})
			x.publish(taskID, "agent_result", map[string]any{"agent_id": agent.Name(), "agent_name": agent.Name(), "result": halt.Response})
			return halt.Response, nil
		}

		chunks, err := x.model.CallStream(ctx, req)
		if err != nil {
			x.publish(taskID, "error", map[string]any{"message": err.Error()})
			return "", err
		}

		var content strings.Builder
		toolCalls := make(map[int]*toolCallAccum)
		var order []int
		var streamErr error

	chunkLoop:
		for chunk := range chunks {
			switch chunk.Kind {
			case ChunkDeltaContent:
				content.WriteString(chunk.DeltaContent)
				x.publish(taskID, "message_update", map[string]any{"delta": chunk.DeltaContent})
			case ChunkDeltaToolCall:
				d := chunk.DeltaToolCall
				acc, ok := toolCalls[d.Index]
				if !ok {
					acc = &toolCallAccum{}
					toolCalls[d.Index] = acc
					order = append(order, d.Index)
				}
				if d.ID != "" {
					acc.id = d.ID
				}
				if d.Name != "" {
					acc.name = d.Name
				}
				acc.args.WriteString(d.ArgumentsFragment)
			case ChunkError:
				streamErr = &ProviderError{Provider: x.model.Name(), StatusCode: chunk.StatusCode, Message: chunk.Message}
				x.publish(taskID, "error", map[string]any{"status_code": chunk.StatusCode, "message": chunk.Message})
				break chunkLoop
			case ChunkFinishReason:
				// no-op: loop ends when the channel closes.
			}
		}
		if streamErr != nil {
			return "", streamErr
		}

		sort.Ints(order)

		calls := make([]ToolCall, 0, len(order))
		for _, idx := range order {
			acc := toolCalls[idx]
			raw := acc.args.String()
			if raw == "" {
				raw = "{}"
			}
			calls = append(calls, ToolCall{ID: acc.id, Name: acc.name, Arguments: json.RawMessage(raw)})
		}

		resp := Response{Message: Message{Role: "assistant", Content: content.String(), ToolCalls: calls}}
		if err := x.checkPostCall(ctx, &resp); err != nil {
			var halt *ErrHalt
			if !isErrHalt(err, &halt) {
				x.publish(taskID, "error", map[string]any{"message": err.Error()})
				return "", err
			}
			agent.appendMessage(AssistantMessage(halt.Response))
			agent.appendAction(AgentAction{AgentName: agent.Name(), Type: ActionMessage, Thought: halt.Response})
			x.publish(taskID, "agent_result", map[string]any{"agent_id": agent.Name(), "agent_name": agent.Name(), "result": halt.Response})
			return halt.Response, nil
		}
		calls = resp.Message.ToolCalls

		if len(calls) == 0 {
			final := resp.Message.Content
			agent.appendMessage(AssistantMessage(final))
			agent.appendAction(AgentAction{AgentName: agent.Name(), Type: ActionMessage, Thought: final})
			x.publish(taskID, "agent_result", map[string]any{"agent_id": agent.Name(), "agent_name": agent.Name(), "result": final})
			x.runPostProcessTools(ctx, taskID, agent)
			return final, nil
		}
		agent.appendMessage(Message{Role: "assistant", Content: resp.Message.Content, ToolCalls: calls})

		thought := resp.Message.Content
		if thought != "" {
			x.publish(taskID, "agent_thinking", map[string]any{"agent_id": agent.Name(), "thought": thought})
		}

		for _, call := range calls {
			result := x.dispatchTool(ctx, taskID, agent, call, thought)
			agent.appendAction(AgentAction{AgentName: agent.Name(), Type: ActionToolUse, ToolResult: &result})
			body, _ := json.Marshal(result)
			agent.appendMessage(ToolResultMessage(call.ID, string(body)))
		}
	}
}

// dispatchTool validates a tool call's arguments, resolves the tool via
// agent's registry, times execution, and publishes the start/end event
// pair. Malformed arguments never reach the tool: they synthesize an
// error ToolResult directly, per §4.3. thought is the assistant content
// that accompanied this tool call, carried through to the published
// events for the §6 tool_decision/tool_execute wire frames.
func (x *AgentStreamExecutor) dispatchTool(ctx context.Context, taskID string, agent *Agent, call ToolCall, thought string) ToolResult {
	x.publish(taskID, "tool_execution_start", map[string]any{
		"agent_id": agent.Name(), "tool_call_id": call.ID, "name": call.Name,
		"arguments": string(call.Arguments), "thought": thought,
	})

	if !json.Valid(call.Arguments) {
		x.logger.Warn("malformed tool arguments", "tool", call.Name, "raw", string(call.Arguments))
		result := ToolResult{ToolName: call.Name, Status: "error", ErrorMessage: "malformed tool arguments"}
		x.publish(taskID, "tool_execution_end", map[string]any{"agent_id": agent.Name(), "tool_call_id": call.ID, "status": result.Status, "result": result, "duration": 0.0})
		return result
	}

	start := time.Now()
	result, err := agent.Tools().Execute(ctx, call.Name, call.Arguments)
	elapsed := time.Since(start).Seconds()
	result.ExecutionTime = elapsed
	if err != nil {
		result = ToolResult{ToolName: call.Name, Status: "error", ErrorMessage: err.Error(), ExecutionTime: elapsed}
	}
	x.publish(taskID, "tool_execution_end", map[string]any{"agent_id": agent.Name(), "tool_call_id": call.ID, "status": result.Status, "result": result, "duration": elapsed})
	return result
}

// runPostProcessTools executes every registered PostProcess tool, in
// registration order, against agent's final state.
func (x *AgentStreamExecutor) runPostProcessTools(ctx context.Context, taskID string, agent *Agent) {
	for _, t := range agent.Tools().PostProcessTools() {
		result, err := t.ExecutePost(ctx, agent)
		if err != nil {
			x.logger.Warn("post-process tool failed", "err", err)
			continue
		}
		agent.appendAction(AgentAction{AgentName: agent.Name(), Type: ActionToolUse, ToolResult: &result})
	}
}

// trimmedRequestMessages rebuilds agent's request history (system prompt
// plus accumulated messages), applies context trimming, and persists the
// trimmed non-system suffix back onto agent so the next turn starts from
// the reduced history.
func (x *AgentStreamExecutor) trimmedRequestMessages(agent *Agent) []Message {
	combined := make([]Message, 0, len(agent.Messages())+1)
	combined = append(combined, SystemMessage(agent.SystemPrompt()))
	combined = append(combined, agent.Messages()...)

	family := classifyModelFamily(agent.ModelRef())
	budget, _ := computeBudget(ContextWindow(family))

	before := len(combined)
	trimmed := trimToBudget(combined, budget)
	if len(trimmed) != before {
		x.logger.Info("context trimmed", "agent", agent.Name(), "before", before, "after", len(trimmed))
	}

	if len(trimmed) > 0 && trimmed[0].Role == "system" {
		agent.setMessages(append([]Message(nil), trimmed[1:]...))
	} else {
		agent.setMessages(append([]Message(nil), trimmed...))
	}
	return trimmed
}

// isErrHalt reports whether err is an *ErrHalt, writing it to *out on match.
func isErrHalt(err error, out **ErrHalt) bool {
	h, ok := err.(*ErrHalt)
	if ok {
		*out = h
	}
	return ok
}
