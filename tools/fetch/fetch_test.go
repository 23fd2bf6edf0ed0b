package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchURLBasic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>Hello from test server</p></body></html>"))
	}))
	defer srv.Close()

	tool := New()
	args, _ := json.Marshal(map[string]string{"url": srv.URL})
	result, err := tool.Execute(context.Background(), "fetch_url", args)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" {
		t.Fatalf("unexpected status: %s %s", result.Status, result.ErrorMessage)
	}
	if result.Output == "" {
		t.Error("expected content")
	}
}

func TestFetchURL404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	tool := New()
	args, _ := json.Marshal(map[string]string{"url": srv.URL})
	result, _ := tool.Execute(context.Background(), "fetch_url", args)
	if result.Status != "error" {
		t.Error("expected error for 404")
	}
}

func TestFetchURLTruncation(t *testing.T) {
	bigContent := make([]byte, 10000)
	for i := range bigContent {
		bigContent[i] = 'A'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bigContent)
	}))
	defer srv.Close()

	tool := New()
	args, _ := json.Marshal(map[string]string{"url": srv.URL})
	result, _ := tool.Execute(context.Background(), "fetch_url", args)
	if len(result.Output) > 8100 {
		t.Errorf("content not truncated: %d", len(result.Output))
	}
}

func TestFetchURLInvalidArgs(t *testing.T) {
	tool := New()
	result, err := tool.Execute(context.Background(), "fetch_url", []byte(`not json`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "error" {
		t.Error("expected error for invalid args")
	}
}

func TestFetchURLDefinitions(t *testing.T) {
	tool := New()
	defs := tool.Definitions()
	if len(defs) != 1 || defs[0].Name != "fetch_url" {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
}
