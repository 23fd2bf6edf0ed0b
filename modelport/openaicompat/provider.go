package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agentmesh-go/agentmesh"
)

// Provider implements agentmesh.ModelPort for any OpenAI-compatible API.
//
// Works with OpenAI, OpenRouter, Groq, Together, Fireworks, DeepSeek,
// Mistral, Ollama, vLLM, LM Studio, Azure OpenAI, and any other provider
// exposing the OpenAI chat completions API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	name    string
}

// ProviderOption configures a Provider instance.
type ProviderOption func(*Provider)

// WithName sets the provider name returned by Name() (default
// "openai-compat"). Use this to distinguish providers in logs.
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient sets a custom HTTP client (timeouts, proxies).
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// NewProvider creates an OpenAI-compatible ModelPort. baseURL is the API
// base (e.g. "https://api.openai.com/v1"); "/chat/completions" is
// appended automatically.
func NewProvider(apiKey, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{apiKey: apiKey, baseURL: baseURL, client: &http.Client{}, name: "openai-compat"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements agentmesh.ModelPort.
func (p *Provider) Name() string { return p.name }

// Call implements agentmesh.ModelPort.
func (p *Provider) Call(ctx context.Context, req agentmesh.Request) (agentmesh.Response, error) {
	body := BuildBody(req)
	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		return agentmesh.Response{}, &agentmesh.TransportError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return agentmesh.Response{}, p.statusErr(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return agentmesh.Response{}, &agentmesh.ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return ParseResponse(chatResp), nil
}

// CallStream implements agentmesh.ModelPort.
func (p *Provider) CallStream(ctx context.Context, req agentmesh.Request) (<-chan agentmesh.Chunk, error) {
	body := BuildBody(req)
	body.Stream = true
	body.StreamOptions = &StreamOptions{IncludeUsage: true}

	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		return nil, &agentmesh.TransportError{Provider: p.name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.statusErr(resp)
	}

	ch := make(chan agentmesh.Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		streamSSE(ctx, resp.Body, ch)
	}()
	return ch, nil
}

func (p *Provider) sendHTTP(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(httpReq)
}

func (p *Provider) statusErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &agentmesh.ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Message: string(body)}
}

var _ agentmesh.ModelPort = (*Provider)(nil)
