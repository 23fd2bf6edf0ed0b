package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/agentmesh-go/agentmesh"
)

// convertMessages splits off system messages into a single concatenated
// system prompt (Anthropic has no "system" role in the messages array) and
// converts the rest to anthropic.MessageParam, folding tool_use / tool_result
// content blocks into the surrounding assistant/user turn.
func convertMessages(msgs []agentmesh.Message) ([]anthropic.MessageParam, string, error) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += m.Content

		case "user":
			out = append(out, anthropic.NewUserMessage(contentBlocks(m)...))

		case "assistant":
			blocks := contentBlocks(m)
			for _, tc := range m.ToolCalls {
				var input map[string]any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, "", fmt.Errorf("tool call %s: %w", tc.ID, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out, system, nil
}

func contentBlocks(m agentmesh.Message) []anthropic.ContentBlockParamUnion {
	if len(m.Parts) == 0 {
		if m.Content == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == "image" {
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MimeType, p.Data))
		} else {
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	return blocks
}

// convertTools translates agentmesh.ToolDefinitions into Anthropic's tool
// schema. Parameters is expected to already be a JSON-schema object.
func convertTools(tools []agentmesh.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		if err := json.Unmarshal(params, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: parameters: %w", t.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}
