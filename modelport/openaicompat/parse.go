package openaicompat

import (
	"encoding/json"

	"github.com/agentmesh-go/agentmesh"
)

// ParseResponse converts an OpenAI-format ChatResponse to an
// agentmesh.Response. It extracts content, tool calls, and usage from
// choices[0].
func ParseResponse(resp ChatResponse) agentmesh.Response {
	var out agentmesh.Response
	out.Success = true

	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	if choice.Message != nil {
		out.Message = agentmesh.Message{
			Role:      "assistant",
			Content:   choice.Message.Content,
			ToolCalls: parseToolCalls(choice.Message.ToolCalls),
		}
	}

	if resp.Usage != nil {
		out.Usage = agentmesh.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out
}

// parseToolCalls converts OpenAI tool call requests to agentmesh
// ToolCalls. OpenAI returns function.arguments as a JSON string;
// malformed arguments pass through verbatim — the Executor, not the
// adapter, owns the empty/malformed recovery rule.
func parseToolCalls(tcs []ToolCallRequest) []agentmesh.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]agentmesh.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		out = append(out, agentmesh.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
