package agentmesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TeamSpec is the static, config-loaded description of a team: its
// shared prompt fragments, decision model, step budget, and ordered
// agent roster. team.Agents[0] is the entry agent for a fresh run.
type TeamSpec struct {
	Name        string
	Description string
	Rule        string
	ModelRef    string
	MaxSteps    int
	Agents      []*Agent
}

// TeamOrchestrator drives a multi-agent run: Init → Selecting → Running,
// looping until the decision LLM signals completion ("Done") or the
// team's step budget is exhausted ("Aborted").
type TeamOrchestrator struct {
	decisionModel ModelPort
	executor      *AgentStreamExecutor
	bus           *EventBus
	logger        *slog.Logger
}

// NewTeamOrchestrator creates an Orchestrator. decisionModel is called
// with temperature=0, json_format=true to pick the next agent.
func NewTeamOrchestrator(decisionModel ModelPort, executor *AgentStreamExecutor, bus *EventBus, logger *slog.Logger) *TeamOrchestrator {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &TeamOrchestrator{decisionModel: decisionModel, executor: executor, bus: bus, logger: logger}
}

func (o *TeamOrchestrator) publish(taskID, kind string, data map[string]any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(Event{Type: kind, TaskID: taskID, Data: data})
}

// decision is the constrained JSON shape the decision LLM must return.
type decision struct {
	ID      *int   `json:"id"`
	Subtask string `json:"subtask"`
}

// Run drives team to completion for userTask, publishing agent/tool/task
// events tagged with taskID. It returns the terminal Task status.
func (o *TeamOrchestrator) Run(ctx context.Context, taskID string, team *TeamSpec, userTask string) (TaskStatus, error) {
	if len(team.Agents) == 0 {
		return TaskFailed, &ConfigError{Kind: "team", Name: team.Name}
	}

	tc := &TeamContext{
		Name:        team.Name,
		Description: team.Description,
		Rule:        team.Rule,
		ModelRef:    team.ModelRef,
		MaxSteps:    team.MaxSteps,
		UserTask:    userTask,
	}

	var lastAgent *Agent

	for {
		if ctx.Err() != nil {
			o.publish(taskID, "task_result", map[string]any{"status": "failed"})
			return TaskFailed, ctx.Err()
		}
		var chosen *Agent
		var subtask string

		if len(tc.AgentOutputs) == 0 {
			chosen = team.Agents[0]
			subtask = userTask
		} else {
			candidates := candidatesExcluding(team.Agents, lastAgent)
			d, pickErr := o.decide(ctx, team, tc, candidates)
			if pickErr != nil {
				var parseErr *ParseError
				if errors.As(pickErr, &parseErr) {
					o.logger.Warn("decision response malformed, treating as done", "err", pickErr)
					o.publish(taskID, "task_result", map[string]any{"status": "success"})
					return TaskSuccess, nil
				}
				o.logger.Warn("decision call failed", "err", pickErr)
				o.publish(taskID, "task_result", map[string]any{"status": "failed"})
				return TaskFailed, pickErr
			}
			if d == nil {
				o.publish(taskID, "task_result", map[string]any{"status": "success"})
				return TaskSuccess, nil
			}
			chosen = candidates[*d.ID]
			subtask = d.Subtask
		}

		o.publish(taskID, "agent_decision", map[string]any{
			"agent_id":     chosen.Name(),
			"agent_name":   chosen.Name(),
			"agent_avatar": "",
			"sub_task":     subtask,
		})

		prompt := buildTurnPrompt(team, tc, subtask)
		answer, err := o.executor.Run(ctx, taskID, chosen, tc, prompt)
		if err != nil {
			o.publish(taskID, "task_result", map[string]any{"status": "failed"})
			return TaskFailed, err
		}

		tc.AgentOutputs = append(tc.AgentOutputs, AgentOutput{AgentName: chosen.Name(), Output: answer})
		lastAgent = chosen
	}
}

// candidatesExcluding returns agents in team order, excluding just (the
// agent that just produced the latest agent_outputs entry). just == nil
// (first selection) returns the full roster.
func candidatesExcluding(agents []*Agent, just *Agent) []*Agent {
	if just == nil {
		return agents
	}
	out := make([]*Agent, 0, len(agents)-1)
	for _, a := range agents {
		if a != just {
			out = append(out, a)
		}
	}
	return out
}

// decide calls the decision LLM to pick the next candidate, or nil to
// signal the run is done. A negative or null id is recovered locally as
// "done" with no error; a malformed JSON body surfaces as *ParseError,
// which Run also recovers as "done" per §7. A transport failure or
// non-2xx response surfaces as *TransportError/*ProviderError and is
// NOT recovered — Run treats those as a failed task.
func (o *TeamOrchestrator) decide(ctx context.Context, team *TeamSpec, tc *TeamContext, candidates []*Agent) (*decision, error) {
	req := Request{
		ModelName:   team.ModelRef,
		Messages:    []Message{SystemMessage(decisionSystemPrompt(team, tc, candidates)), UserMessage(tc.UserTask)},
		Temperature: 0,
		JSONFormat:  true,
	}

	resp, err := o.decisionModel.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &ProviderError{Provider: o.decisionModel.Name(), StatusCode: resp.StatusCode, Message: resp.ErrorMessage}
	}

	var d decision
	if jsonErr := json.Unmarshal([]byte(resp.Message.Content), &d); jsonErr != nil {
		return nil, &ParseError{Context: "decision", Raw: resp.Message.Content, Err: jsonErr}
	}
	if d.ID == nil || *d.ID < 0 || *d.ID >= len(candidates) {
		return nil, nil
	}
	return &d, nil
}

// decisionSystemPrompt builds the team-level decision call's system
// message: team identity, prior agent outputs, and the indexed candidate
// roster the decision LLM must choose an id from.
func decisionSystemPrompt(team *TeamSpec, tc *TeamContext, candidates []*Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You coordinate the %q team.\n", team.Name)
	if team.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", team.Description)
	}
	if team.Rule != "" {
		fmt.Fprintf(&b, "Rule: %s\n", team.Rule)
	}
	b.WriteString("\nPrior agent outputs:\n")
	for _, out := range tc.AgentOutputs {
		fmt.Fprintf(&b, "member %s:\noutput content: %s\n", out.AgentName, out.Output)
	}
	b.WriteString("\nCandidates:\n")
	for i, a := range candidates {
		fmt.Fprintf(&b, "%d: %s — %s\n", i, a.Name(), a.Description())
	}
	b.WriteString("\nReturn JSON {\"id\": int, \"subtask\": string}. Use a negative id or null to signal the task is complete.")
	return b.String()
}

// buildTurnPrompt is the per-turn user message handed to the Agent
// Stream Executor: a role line, team context, the current time, prior
// agent outputs, and the chosen subtask.
func buildTurnPrompt(team *TeamSpec, tc *TeamContext, subtask string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are acting as a member of the %q team.\n", team.Name)
	if team.Rule != "" {
		fmt.Fprintf(&b, "Team rule: %s\n", team.Rule)
	}
	fmt.Fprintf(&b, "Current time: %s\n", time.Now().UTC().Format(time.RFC3339))
	if len(tc.AgentOutputs) > 0 {
		b.WriteString("Prior agent outputs:\n")
		for _, out := range tc.AgentOutputs {
			fmt.Fprintf(&b, "member %s:\noutput content: %s\n", out.AgentName, out.Output)
		}
	}
	fmt.Fprintf(&b, "\nSubtask: %s\n", subtask)
	return b.String()
}
