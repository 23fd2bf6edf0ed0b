package agentmesh

// Agent is a named LLM persona: its own system prompt, model, and tool
// set. It is owned by exactly one TeamContext for a given run, but may be
// reused across runs by calling ResetHistory (clear_history=true in spec
// terms).
type Agent struct {
	name         string
	description  string
	systemPrompt string
	modelRef     string
	tools        *ToolRegistry
	maxSteps     int

	messages        []Message
	capturedActions []AgentAction
}

// AgentOption configures an Agent at construction time.
type AgentOption func(*Agent)

// WithSystemPrompt sets the agent's system prompt.
func WithSystemPrompt(s string) AgentOption {
	return func(a *Agent) { a.systemPrompt = s }
}

// WithAgentTools attaches a tool registry to the agent.
func WithAgentTools(r *ToolRegistry) AgentOption {
	return func(a *Agent) { a.tools = r }
}

// WithMaxSteps sets the agent's own step budget (the Executor also
// enforces the enclosing team's budget).
func WithMaxSteps(n int) AgentOption {
	return func(a *Agent) { a.maxSteps = n }
}

const defaultAgentMaxSteps = 10

// NewAgent creates an Agent bound to modelRef, with an empty tool
// registry unless WithAgentTools is supplied.
func NewAgent(name, description, modelRef string, opts ...AgentOption) *Agent {
	a := &Agent{
		name:        name,
		description: description,
		modelRef:    modelRef,
		tools:       NewToolRegistry(),
		maxSteps:    defaultAgentMaxSteps,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Name() string         { return a.name }
func (a *Agent) Description() string  { return a.description }
func (a *Agent) SystemPrompt() string { return a.systemPrompt }
func (a *Agent) ModelRef() string     { return a.modelRef }
func (a *Agent) MaxSteps() int        { return a.maxSteps }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *ToolRegistry { return a.tools }

// appendMessage adds m to the agent's persisted conversation history.
func (a *Agent) appendMessage(m Message) { a.messages = append(a.messages, m) }

// setMessages replaces the agent's persisted history wholesale, used by
// the Executor after context trimming.
func (a *Agent) setMessages(ms []Message) { a.messages = ms }

// appendAction records one AgentAction in the agent's append-only log for
// the current run.
func (a *Agent) appendAction(act AgentAction) { a.capturedActions = append(a.capturedActions, act) }

// ResetHistory clears the agent's accumulated messages and captured
// actions, making a subsequent Run stateless with respect to prior runs.
func (a *Agent) ResetHistory() {
	a.messages = nil
	a.capturedActions = nil
}

// Messages returns the agent's accumulated conversation history.
func (a *Agent) Messages() []Message { return a.messages }

// CapturedActions returns the agent's append-only action log for the
// current run.
func (a *Agent) CapturedActions() []AgentAction { return a.capturedActions }

// FinalOutput returns the content of the most recent assistant message
// with no tool calls, or "" if the agent has not yet produced one.
func (a *Agent) FinalOutput() string {
	for i := len(a.messages) - 1; i >= 0; i-- {
		m := a.messages[i]
		if m.Role == "assistant" && len(m.ToolCalls) == 0 {
			return m.Content
		}
	}
	return ""
}

// compile-time check: Agent implements AgentView for PostProcess tools.
var _ AgentView = (*Agent)(nil)
