// Package file provides a PreProcess tool for reading, writing, listing,
// deleting, and stat-ing files confined to a workspace directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentmesh-go/agentmesh"
)

// Tool provides file operations within a workspace directory.
type Tool struct {
	workspacePath string
}

// New creates a file Tool restricted to workspacePath.
func New(workspacePath string) *Tool {
	return &Tool{workspacePath: workspacePath}
}

func (t *Tool) Definitions() []agentmesh.ToolDefinition {
	return []agentmesh.ToolDefinition{
		{
			Name:        "file_read",
			Description: "Read a file from the workspace. Returns the file content (truncated to 8000 chars if large).",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File path relative to workspace"}},"required":["path"]}`),
			Stage:       agentmesh.PreProcess,
		},
		{
			Name:        "file_write",
			Description: "Write content to a file in the workspace. Creates parent directories if needed.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File path relative to workspace"},"content":{"type":"string","description":"Content to write"}},"required":["path","content"]}`),
			Stage:       agentmesh.PreProcess,
		},
		{
			Name:        "file_list",
			Description: "List files and directories in a workspace directory. Returns one entry per line with type prefix (file/dir) and name.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Directory path relative to workspace (empty or '.' for root)"}}}`),
			Stage:       agentmesh.PreProcess,
		},
		{
			Name:        "file_delete",
			Description: "Delete a file or empty directory from the workspace.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File or directory path relative to workspace"}},"required":["path"]}`),
			Stage:       agentmesh.PreProcess,
		},
		{
			Name:        "file_stat",
			Description: "Get metadata for a file or directory in the workspace. Returns name, size, type, and modification time.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File or directory path relative to workspace"}},"required":["path"]}`),
			Stage:       agentmesh.PreProcess,
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (agentmesh.ToolResult, error) {
	start := time.Now()
	result := agentmesh.ToolResult{ToolName: name, InputParams: string(args)}

	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return t.fail(result, start, "invalid args: "+err.Error()), nil
	}

	path := params.Path
	if path == "" {
		path = "."
	}
	resolved, err := t.resolvePath(path)
	if err != nil {
		return t.fail(result, start, err.Error()), nil
	}

	switch name {
	case "file_read":
		return t.read(result, start, resolved), nil
	case "file_write":
		return t.write(result, start, resolved, params.Content), nil
	case "file_list":
		return t.list(result, start, resolved), nil
	case "file_delete":
		return t.remove(result, start, resolved), nil
	case "file_stat":
		return t.stat(result, start, resolved), nil
	default:
		return t.fail(result, start, "unknown file tool: "+name), nil
	}
}

func (t *Tool) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}
	resolved := filepath.Join(t.workspacePath, path)
	if !strings.HasPrefix(resolved, t.workspacePath) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return resolved, nil
}

func (t *Tool) fail(result agentmesh.ToolResult, start time.Time, msg string) agentmesh.ToolResult {
	result.Status = "error"
	result.ErrorMessage = msg
	result.ExecutionTime = time.Since(start).Seconds()
	return result
}

func (t *Tool) ok(result agentmesh.ToolResult, start time.Time, output string) agentmesh.ToolResult {
	result.Status = "success"
	result.Output = output
	result.ExecutionTime = time.Since(start).Seconds()
	return result
}

func (t *Tool) read(result agentmesh.ToolResult, start time.Time, path string) agentmesh.ToolResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return t.fail(result, start, "read error: "+err.Error())
	}
	content := string(data)
	if len(content) > 8000 {
		content = content[:8000] + "\n... (truncated)"
	}
	return t.ok(result, start, content)
}

func (t *Tool) write(result agentmesh.ToolResult, start time.Time, path, content string) agentmesh.ToolResult {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return t.fail(result, start, "mkdir error: "+err.Error())
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return t.fail(result, start, "write error: "+err.Error())
	}
	return t.ok(result, start, fmt.Sprintf("Written %d bytes to %s", len(content), filepath.Base(path)))
}

func (t *Tool) list(result agentmesh.ToolResult, start time.Time, path string) agentmesh.ToolResult {
	entries, err := os.ReadDir(path)
	if err != nil {
		return t.fail(result, start, "list error: "+err.Error())
	}
	var b strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", kind, e.Name())
	}
	return t.ok(result, start, b.String())
}

func (t *Tool) remove(result agentmesh.ToolResult, start time.Time, path string) agentmesh.ToolResult {
	if err := os.Remove(path); err != nil {
		return t.fail(result, start, "delete error: "+err.Error())
	}
	return t.ok(result, start, fmt.Sprintf("Deleted %s", filepath.Base(path)))
}

func (t *Tool) stat(result agentmesh.ToolResult, start time.Time, path string) agentmesh.ToolResult {
	info, err := os.Stat(path)
	if err != nil {
		return t.fail(result, start, "stat error: "+err.Error())
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	out, _ := json.Marshal(map[string]any{
		"name":     info.Name(),
		"size":     info.Size(),
		"type":     kind,
		"modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	})
	return t.ok(result, start, string(out))
}

var _ agentmesh.Tool = (*Tool)(nil)
