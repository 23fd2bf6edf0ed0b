// Package shell provides a PreProcess tool that executes shell commands
// inside a workspace directory. Per the runtime's non-goal of no
// sandboxing beyond a command denylist, it runs commands directly with
// os/exec — there is no container or VM boundary around the subprocess.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agentmesh-go/agentmesh"
)

// Tool executes shell commands in a workspace directory.
type Tool struct {
	workspacePath  string
	defaultTimeout int // seconds
	denylist       []string
}

// New creates a shell Tool. Commands run in workspacePath with the given
// default timeout (seconds; a non-positive value is replaced with 30).
func New(workspacePath string, defaultTimeout int) *Tool {
	if defaultTimeout <= 0 {
		defaultTimeout = 30
	}
	return &Tool{
		workspacePath:  workspacePath,
		defaultTimeout: defaultTimeout,
		denylist:       []string{"rm -rf /", "sudo ", "mkfs", "> /dev/", "dd if="},
	}
}

func (t *Tool) Definitions() []agentmesh.ToolDefinition {
	return []agentmesh.ToolDefinition{{
		Name:        "shell_exec",
		Description: "Execute a shell command in the workspace directory. Returns stdout + stderr.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"Shell command to execute"},"timeout":{"type":"integer","description":"Timeout in seconds (default 30)"}},"required":["command"]}`),
		Stage:       agentmesh.PreProcess,
	}}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (agentmesh.ToolResult, error) {
	start := time.Now()
	result := agentmesh.ToolResult{ToolName: name, InputParams: string(args)}

	var params struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		result.Status = "error"
		result.ErrorMessage = "invalid args: " + err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result, nil
	}
	if params.Command == "" {
		result.Status = "error"
		result.ErrorMessage = "command is required"
		result.ExecutionTime = time.Since(start).Seconds()
		return result, nil
	}

	lower := strings.ToLower(params.Command)
	for _, b := range t.denylist {
		if strings.Contains(lower, b) {
			result.Status = "error"
			result.ErrorMessage = "command blocked by denylist: " + b
			result.ExecutionTime = time.Since(start).Seconds()
			return result, nil
		}
	}

	timeout := t.defaultTimeout
	if params.Timeout > 0 {
		timeout = params.Timeout
	}
	if timeout > 300 {
		timeout = 300
	}

	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", params.Command)
	cmd.Dir = t.workspacePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var output string
	if stdout.Len() > 0 {
		output = stdout.String()
	}
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > 4000 {
		output = output[:4000] + "\n... (truncated)"
	}

	result.ExecutionTime = time.Since(start).Seconds()

	if runErr != nil {
		result.Output = output
		result.Status = "error"
		if cmdCtx.Err() == context.DeadlineExceeded {
			result.ErrorMessage = fmt.Sprintf("command timed out after %ds", timeout)
		} else {
			if output == "" {
				result.Output = runErr.Error()
			}
			result.ErrorMessage = "exit: " + runErr.Error()
		}
		return result, nil
	}

	if output == "" {
		output = "(no output)"
	}
	result.Output = output
	result.Status = "success"
	return result, nil
}

var _ agentmesh.Tool = (*Tool)(nil)
