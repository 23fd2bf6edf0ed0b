package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentmesh-go/agentmesh"
)

func TestProviderCallSendsAuthorizedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("expected model gpt-4o, got %q", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: &ChoiceMessage{Role: "assistant", Content: "Hello!"}}},
			Usage:   &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		})
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL)
	resp, err := p.Call(context.Background(), agentmesh.Request{
		ModelName: "gpt-4o",
		Messages:  []agentmesh.Message{agentmesh.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if resp.Message.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", resp.Message.Content)
	}
	if resp.Usage.PromptTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestProviderCallNonOKStatusBecomesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL)
	_, err := p.Call(context.Background(), agentmesh.Request{})

	var provErr *agentmesh.ProviderError
	if e, ok := err.(*agentmesh.ProviderError); ok {
		provErr = e
	} else {
		t.Fatalf("expected *agentmesh.ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", provErr.StatusCode)
	}
}

func TestProviderCallStreamSendsStreamFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("expected Stream = true on CallStream")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n"))
		w.Write([]byte("data: [DONE]\n"))
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL)
	ch, err := p.CallStream(context.Background(), agentmesh.Request{})
	if err != nil {
		t.Fatalf("CallStream returned error: %v", err)
	}

	var got []agentmesh.Chunk
	for c := range ch {
		got = append(got, c)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(got), got)
	}
	if got[0].DeltaContent != "hi" {
		t.Errorf("unexpected first chunk: %+v", got[0])
	}
}

func TestProviderNameDefaultsToOpenAICompat(t *testing.T) {
	p := NewProvider("key", "http://example.invalid")
	if p.Name() != "openai-compat" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestProviderNameOverride(t *testing.T) {
	p := NewProvider("key", "http://example.invalid", WithName("groq"))
	if p.Name() != "groq" {
		t.Errorf("Name() = %q", p.Name())
	}
}
