package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for agentmesh observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")

	AttrToolCount = attribute.Key("llm.tool_count")
	AttrToolNames = attribute.Key("llm.tool_names")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrAgentName = attribute.Key("agent.name")
	AttrTeamName  = attribute.Key("team.name")
	AttrTaskID    = attribute.Key("task.id")
	AttrTurnN     = attribute.Key("turn.n")
)
