// Package anthropic implements agentmesh.ModelPort against Claude models
// using the official Anthropic SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentmesh-go/agentmesh"
)

// Provider implements agentmesh.ModelPort for Anthropic's Claude API.
type Provider struct {
	client       anthropic.Client
	defaultModel string
}

// Config configures a Provider.
type Config struct {
	APIKey       string
	BaseURL      string // overrides the default Anthropic API base URL
	DefaultModel string // used when Request.ModelName is empty
}

// New creates a Provider from config. APIKey is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-3-5-sonnet-20241022"
	}
	return &Provider{client: anthropic.NewClient(opts...), defaultModel: defaultModel}, nil
}

// Name implements agentmesh.ModelPort.
func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) model(name string) string {
	if name == "" {
		return p.defaultModel
	}
	return name
}

func (p *Provider) maxTokens(n int, model string) int64 {
	if n > 0 {
		return int64(n)
	}
	family := agentmesh.FamilyClaude3Other
	m := strings.ToLower(model)
	for _, v := range []string{"claude-3-5", "claude-3.5", "claude-3-7", "claude-3.7"} {
		if strings.Contains(m, v) {
			family = agentmesh.FamilyClaude35_37
		}
	}
	return int64(agentmesh.DefaultMaxTokens(family))
}

func (p *Provider) buildParams(req agentmesh.Request) (anthropic.MessageNewParams, error) {
	messages, system, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.ModelName)),
		Messages:  messages,
		MaxTokens: p.maxTokens(req.MaxTokens, p.model(req.ModelName)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// Call implements agentmesh.ModelPort.
func (p *Provider) Call(ctx context.Context, req agentmesh.Request) (agentmesh.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return agentmesh.Response{}, &agentmesh.ParseError{Context: "tool_arguments", Err: err}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return agentmesh.Response{}, wrapErr(p.Name(), err)
	}

	out := agentmesh.Response{Success: true}
	var content string
	var calls []agentmesh.ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			calls = append(calls, agentmesh.ToolCall{ID: b.ID, Name: b.Name, Arguments: json.RawMessage(b.Input)})
		}
	}
	out.Message = agentmesh.Message{Role: "assistant", Content: content, ToolCalls: calls}
	out.Usage = agentmesh.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return out, nil
}

// CallStream implements agentmesh.ModelPort: it streams content_block and
// message_delta events off the Anthropic SSE stream, accumulating each
// tool_use block's input JSON, and translates them into agentmesh.Chunks.
func (p *Provider) CallStream(ctx context.Context, req agentmesh.Request) (<-chan agentmesh.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, &agentmesh.ParseError{Context: "tool_arguments", Err: err}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	ch := make(chan agentmesh.Chunk)

	go func() {
		defer close(ch)
		processStream(stream, ch, p.Name())
	}()
	return ch, nil
}

var _ agentmesh.ModelPort = (*Provider)(nil)
