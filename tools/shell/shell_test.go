package shell

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestShellExecEcho(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir, 5)
	args, _ := json.Marshal(map[string]any{"command": "echo hello"})
	result, err := tool.Execute(context.Background(), "shell_exec", args)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" {
		t.Fatalf("unexpected status: %s %s", result.Status, result.ErrorMessage)
	}
	if result.Output != "hello\n" {
		t.Errorf("expected 'hello\\n', got %q", result.Output)
	}
}

func TestShellExecWorkingDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(dir+"/test.txt", []byte("content"), 0644)
	tool := New(dir, 5)
	args, _ := json.Marshal(map[string]any{"command": "ls test.txt"})
	result, _ := tool.Execute(context.Background(), "shell_exec", args)
	if result.Status != "success" {
		t.Fatalf("unexpected status: %s %s", result.Status, result.ErrorMessage)
	}
	if result.Output != "test.txt\n" {
		t.Errorf("expected test.txt, got %q", result.Output)
	}
}

func TestShellExecBlocked(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": "sudo reboot"})
	result, _ := tool.Execute(context.Background(), "shell_exec", args)
	if result.Status != "error" {
		t.Error("expected blocked error")
	}
}

func TestShellExecTimeout(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": "sleep 10", "timeout": 1})
	result, _ := tool.Execute(context.Background(), "shell_exec", args)
	if result.Status != "error" {
		t.Error("expected timeout error")
	}
}

func TestShellExecStderr(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": "echo out && echo err >&2"})
	result, err := tool.Execute(context.Background(), "shell_exec", args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Output, "out") {
		t.Error("missing stdout content")
	}
	if !strings.Contains(result.Output, "err") {
		t.Error("missing stderr content")
	}
	if !strings.Contains(result.Output, "stderr") {
		t.Error("missing stderr separator")
	}
}

func TestShellExecExitCode(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": "exit 1"})
	result, _ := tool.Execute(context.Background(), "shell_exec", args)
	if result.Status != "error" {
		t.Error("expected exit error")
	}
	if !strings.Contains(result.ErrorMessage, "exit") {
		t.Errorf("error should mention exit, got %q", result.ErrorMessage)
	}
}

func TestShellExecEmptyCommand(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": ""})
	result, _ := tool.Execute(context.Background(), "shell_exec", args)
	if result.Status != "error" {
		t.Error("expected error for empty command")
	}
	if !strings.Contains(result.ErrorMessage, "required") {
		t.Errorf("error should mention required, got %q", result.ErrorMessage)
	}
}

func TestShellExecMaxTimeoutCapped(t *testing.T) {
	tool := New(t.TempDir(), 5)
	// timeout=999 should be capped to 300, but command finishes fast anyway
	args, _ := json.Marshal(map[string]any{"command": "echo hi", "timeout": 999})
	result, err := tool.Execute(context.Background(), "shell_exec", args)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" {
		t.Fatalf("unexpected status: %s %s", result.Status, result.ErrorMessage)
	}
	if !strings.Contains(result.Output, "hi") {
		t.Errorf("expected 'hi', got %q", result.Output)
	}
}

func TestShellExecDefinitions(t *testing.T) {
	tool := New(t.TempDir(), 5)
	defs := tool.Definitions()
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "shell_exec" {
		t.Errorf("expected 'shell_exec', got %q", defs[0].Name)
	}
}

func TestShellExecNoOutput(t *testing.T) {
	tool := New(t.TempDir(), 5)
	args, _ := json.Marshal(map[string]any{"command": "true"})
	result, err := tool.Execute(context.Background(), "shell_exec", args)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" {
		t.Fatalf("unexpected status: %s %s", result.Status, result.ErrorMessage)
	}
	if result.Output != "(no output)" {
		t.Errorf("expected '(no output)', got %q", result.Output)
	}
}

func TestShellExecBlockedVariants(t *testing.T) {
	tool := New(t.TempDir(), 5)
	blocked := []string{
		"rm -rf /",
		"SUDO reboot",
		"mkfs.ext4 /dev/sda",
		"echo test > /dev/null && dd if=/dev/zero of=/tmp/x",
	}
	for _, cmd := range blocked {
		args, _ := json.Marshal(map[string]any{"command": cmd})
		result, _ := tool.Execute(context.Background(), "shell_exec", args)
		if result.Status != "error" {
			t.Errorf("expected %q to be blocked", cmd)
		}
	}
}
