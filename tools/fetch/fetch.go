// Package fetch provides a PreProcess tool that downloads a URL and
// extracts its readable text, handling both HTML (via go-readability)
// and PDF (via ledongthuc/pdf) content.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/agentmesh-go/agentmesh"
)

const maxFetchBytes = 1 << 20 // 1MB

// Tool fetches URLs and extracts readable content.
type Tool struct {
	client *http.Client
}

// New creates a fetch Tool with a 15-second timeout.
func New() *Tool {
	return &Tool{client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *Tool) Definitions() []agentmesh.ToolDefinition {
	return []agentmesh.ToolDefinition{{
		Name:        "fetch_url",
		Description: "Fetch a URL and extract its readable text content, from either an HTML page or a PDF document.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"URL to fetch"}},"required":["url"]}`),
		Stage:       agentmesh.PreProcess,
	}}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (agentmesh.ToolResult, error) {
	start := time.Now()
	result := agentmesh.ToolResult{ToolName: name, InputParams: string(args)}

	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		result.Status = "error"
		result.ErrorMessage = "invalid args: " + err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result, nil
	}

	content, err := t.Fetch(ctx, params.URL)
	if err != nil {
		result.Status = "error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result, nil
	}

	if len(content) > 8000 {
		content = content[:8000] + "\n... (truncated)"
	}

	result.Status = "success"
	result.Output = content
	result.ExecutionTime = time.Since(start).Seconds()
	return result, nil
}

// Fetch downloads a URL and extracts readable text, dispatching to PDF
// or HTML extraction by content type.
func (t *Tool) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; AgentMeshBot/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/pdf") || strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		text, err := extractPDF(body)
		if err != nil {
			return "", fmt.Errorf("pdf extraction: %w", err)
		}
		return text, nil
	}

	html := string(body)
	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil && article.TextContent != "" {
		return strings.TrimSpace(article.TextContent), nil
	}

	return stripHTML(html), nil
}

func extractPDF(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil || pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(strings.TrimSpace(pageText))
	}
	return strings.TrimSpace(text.String()), nil
}

// stripHTML is a minimal fallback when readability extraction fails to
// find an article body: it removes tags and collapses whitespace.
func stripHTML(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	return strings.Join(fields, " ")
}

var _ agentmesh.Tool = (*Tool)(nil)
