package openaicompat

import (
	"encoding/json"

	"github.com/agentmesh-go/agentmesh"
)

// BuildBody converts an agentmesh.Request into an OpenAI-format
// ChatRequest. System messages stay in the messages array as
// role:"system"; multi-part messages become content blocks.
func BuildBody(req agentmesh.Request) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))

	for _, m := range req.Messages {
		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			tcs := make([]ToolCallRequest, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, ToolCallRequest{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			msgs = append(msgs, Message{Role: "assistant", Content: m.Content, ToolCalls: tcs})

		case m.Role == "tool":
			msgs = append(msgs, Message{Role: "tool", Content: m.Content, ToolCallID: m.ToolCallID})

		case len(m.Parts) > 0:
			blocks := make([]ContentBlock, 0, len(m.Parts))
			for _, p := range m.Parts {
				if p.Type == "image" {
					blocks = append(blocks, ContentBlock{
						Type:     "image_url",
						ImageURL: &ImageURL{URL: "data:" + p.MimeType + ";base64," + p.Data},
					})
				} else {
					blocks = append(blocks, ContentBlock{Type: "text", Text: p.Text})
				}
			}
			msgs = append(msgs, Message{Role: m.Role, Content: blocks})

		default:
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
	}

	body := ChatRequest{
		Model:       req.ModelName,
		Messages:    msgs,
		Temperature: &req.Temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		body.Tools = buildToolDefs(req.Tools)
	}
	if req.JSONFormat {
		body.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return body
}

// buildToolDefs converts agentmesh ToolDefinitions to OpenAI tool format.
func buildToolDefs(tools []agentmesh.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type:     "function",
			Function: Function{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	return out
}
