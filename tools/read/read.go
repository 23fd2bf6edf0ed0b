// Package read provides a PostProcess tool that renders an agent's final
// markdown answer to sanitized HTML for the streaming event pipeline,
// using goldmark with its default (CommonMark + GFM) renderer.
package read

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/agentmesh-go/agentmesh"
)

// Tool renders an agent's final output from markdown to HTML.
type Tool struct {
	md goldmark.Markdown
}

// New creates a render Tool.
func New() *Tool {
	return &Tool{
		md: goldmark.New(goldmark.WithExtensions(
			extension.GFM,
		)),
	}
}

func (t *Tool) Definitions() []agentmesh.ToolDefinition {
	return []agentmesh.ToolDefinition{{
		Name:        "render_markdown",
		Description: "Renders the agent's final markdown answer to HTML for display.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		Stage:       agentmesh.PostProcess,
	}}
}

// Execute is unused for render_markdown — it is a PostProcess-only tool,
// dispatched through ExecutePost instead.
func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (agentmesh.ToolResult, error) {
	return agentmesh.ToolResult{
		ToolName:     name,
		Status:       "error",
		ErrorMessage: "render_markdown is a post-process tool and cannot be called from the reason/act loop",
	}, nil
}

// ExecutePost renders view.FinalOutput() from markdown to HTML.
func (t *Tool) ExecutePost(ctx context.Context, view agentmesh.AgentView) (agentmesh.ToolResult, error) {
	start := time.Now()
	result := agentmesh.ToolResult{ToolName: "render_markdown"}

	var buf bytes.Buffer
	if err := t.md.Convert([]byte(view.FinalOutput()), &buf); err != nil {
		result.Status = "error"
		result.ErrorMessage = "markdown render failed: " + err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result, nil
	}

	result.Status = "success"
	result.Output = buf.String()
	result.ExecutionTime = time.Since(start).Seconds()
	return result, nil
}

var (
	_ agentmesh.Tool            = (*Tool)(nil)
	_ agentmesh.PostProcessTool = (*Tool)(nil)
)
