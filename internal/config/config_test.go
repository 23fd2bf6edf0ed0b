package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentmesh-go/agentmesh"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Server.TaskStoreDriver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Server.TaskStoreDriver)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[server]
listen_addr = ":9090"

[models.fast]
provider = "openai-compat"
model = "gpt-4o-mini"
api_key = "sk-test"

[teams.research]
description = "research team"
rule = "route to the most relevant agent"
model = "fast"
max_steps = 8

[[teams.research.agents]]
name = "searcher"
system_prompt = "You search the web."
description = "finds information"
tools = ["web_search"]
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.ListenAddr)
	}
	team, ok := cfg.Teams["research"]
	if !ok {
		t.Fatal("expected team 'research' to be loaded")
	}
	if team.MaxSteps != 8 {
		t.Errorf("expected max_steps 8, got %d", team.MaxSteps)
	}
	if len(team.Agents) != 1 || team.Agents[0].Name != "searcher" {
		t.Fatalf("expected one agent 'searcher', got %+v", team.Agents)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path.toml"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestEnvOverridesModelAPIKey(t *testing.T) {
	t.Setenv("AGENTMESH_MODEL_fast_API_KEY", "env-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[models.fast]
provider = "openai-compat"
model = "gpt-4o-mini"
api_key = "file-key"
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Models["fast"].APIKey != "env-key" {
		t.Errorf("expected env override, got %s", cfg.Models["fast"].APIKey)
	}
}

type fakeTool struct{ name string }

func (f fakeTool) Definitions() []agentmesh.ToolDefinition {
	return []agentmesh.ToolDefinition{{Name: f.name, Stage: agentmesh.PreProcess}}
}
func (f fakeTool) Execute(context.Context, string, json.RawMessage) (agentmesh.ToolResult, error) {
	return agentmesh.ToolResult{ToolName: f.name, Status: "success"}, nil
}

func TestBuildTeamSpecs(t *testing.T) {
	cfg := Config{
		Teams: map[string]TeamConfig{
			"research": {
				Description: "research team",
				Model:       "fast",
				MaxSteps:    5,
				Agents: []AgentConfig{
					{Name: "searcher", SystemPrompt: "search", Tools: []string{"web_search"}},
				},
			},
		},
	}
	models := map[string]agentmesh.ModelPort{"fast": nil}
	registry := agentmesh.NewToolRegistry()
	registry.Add(fakeTool{name: "web_search"})

	specs, err := BuildTeamSpecs(cfg, models, registry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	team, ok := specs["research"]
	if !ok {
		t.Fatal("expected team spec 'research'")
	}
	if len(team.Agents) != 1 {
		t.Fatalf("expected one agent, got %d", len(team.Agents))
	}
	if team.Agents[0].Name() != "searcher" {
		t.Errorf("expected agent name 'searcher', got %s", team.Agents[0].Name())
	}
}

func TestBuildTeamSpecsUnknownModel(t *testing.T) {
	cfg := Config{
		Teams: map[string]TeamConfig{
			"research": {Model: "missing"},
		},
	}
	_, err := BuildTeamSpecs(cfg, map[string]agentmesh.ModelPort{}, agentmesh.NewToolRegistry())
	if err == nil {
		t.Error("expected ConfigError for unknown model, got nil")
	}
}
