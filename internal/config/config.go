// Package config loads the team configuration document that defines the
// teams, agents, and tools an agentmeshd instance serves.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/agentmesh-go/agentmesh"
)

// Config is the top-level configuration document: a server section plus a
// named collection of teams.
type Config struct {
	Server ServerConfig           `toml:"server"`
	Models map[string]ModelConfig `toml:"models"`
	Teams  map[string]TeamConfig  `toml:"teams"`
}

// ServerConfig holds process-wide settings not owned by any one team.
type ServerConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	TaskStoreDriver string `toml:"task_store_driver"` // "sqlite" | "postgres"
	TaskStoreDSN    string `toml:"task_store_dsn"`
}

// ModelConfig names one Model Port backend and its credentials. Teams and
// agents reference entries here by key via their `model` field.
type ModelConfig struct {
	Provider string `toml:"provider"` // "openai-compat" | "anthropic"
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
}

// TeamConfig is one [teams.<name>] table.
type TeamConfig struct {
	Description string        `toml:"description"`
	Rule        string        `toml:"rule"`
	Model       string        `toml:"model"` // key into Config.Models; used for the decision LLM
	MaxSteps    int           `toml:"max_steps"`
	Agents      []AgentConfig `toml:"agents"`
}

// AgentConfig is one entry of a team's `agents` array.
type AgentConfig struct {
	Name         string   `toml:"name"`
	SystemPrompt string   `toml:"system_prompt"`
	Description  string   `toml:"description"`
	Model        string   `toml:"model"`     // defaults to the team's model when empty
	MaxSteps     int      `toml:"max_steps"` // defaults to the team's max_steps when zero
	Tools        []string `toml:"tools"`
}

// Default returns a Config with server defaults applied and no teams.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8080", TaskStoreDriver: "sqlite", TaskStoreDSN: "agentmesh.db"},
		Models: map[string]ModelConfig{},
		Teams:  map[string]TeamConfig{},
	}
}

// Load reads a TOML configuration document from path, starting from
// defaults. Env vars override provider API keys: AGENTMESH_MODEL_<KEY>_API_KEY
// overrides Models[key].APIKey for any model key present in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	for key, model := range cfg.Models {
		if v := os.Getenv("AGENTMESH_MODEL_" + key + "_API_KEY"); v != "" {
			model.APIKey = v
			cfg.Models[key] = model
		}
	}
	return cfg, nil
}

// BuildTeamSpecs converts the loaded team configuration into the runtime
// TeamSpecs the TaskWorker dispatches against, resolving each agent against
// a toolset drawn from registry and a ModelPort drawn from models (keyed by
// the `model` field). An unknown model reference produces a ConfigError of
// kind "model" naming that model. Tool names are not checked: a name with
// no registered tool is skipped without error.
func BuildTeamSpecs(cfg Config, models map[string]agentmesh.ModelPort, registry *agentmesh.ToolRegistry) (map[string]*agentmesh.TeamSpec, error) {
	out := make(map[string]*agentmesh.TeamSpec, len(cfg.Teams))
	for name, tc := range cfg.Teams {
		if _, ok := models[tc.Model]; !ok {
			return nil, &agentmesh.ConfigError{Kind: "model", Name: tc.Model}
		}
		spec := &agentmesh.TeamSpec{
			Name:        name,
			Description: tc.Description,
			Rule:        tc.Rule,
			ModelRef:    tc.Model,
			MaxSteps:    tc.MaxSteps,
		}
		for _, ac := range tc.Agents {
			modelRef := ac.Model
			if modelRef == "" {
				modelRef = tc.Model
			}
			if _, ok := models[modelRef]; !ok {
				return nil, &agentmesh.ConfigError{Kind: "model", Name: modelRef}
			}
			maxSteps := ac.MaxSteps
			if maxSteps == 0 {
				maxSteps = tc.MaxSteps
			}
			opts := []agentmesh.AgentOption{
				agentmesh.WithSystemPrompt(ac.SystemPrompt),
				agentmesh.WithMaxSteps(maxSteps),
				agentmesh.WithAgentTools(registry.Subset(ac.Tools)),
			}
			agent := agentmesh.NewAgent(ac.Name, ac.Description, modelRef, opts...)
			spec.Agents = append(spec.Agents, agent)
		}
		out[name] = spec
	}
	return out, nil
}
