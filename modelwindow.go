package agentmesh

import "strings"

// classifyModelFamily maps a model_ref string to a ModelFamily for the
// Executor's context trimmer. Adapters never consult this — they only
// receive model_name and pass it to the provider verbatim.
func classifyModelFamily(modelRef string) ModelFamily {
	m := strings.ToLower(modelRef)
	switch {
	case strings.Contains(m, "claude-3-5"), strings.Contains(m, "claude-3.5"),
		strings.Contains(m, "claude-3-7"), strings.Contains(m, "claude-3.7"):
		return FamilyClaude35_37
	case strings.Contains(m, "opus"):
		return FamilyClaude3Opus
	case strings.Contains(m, "claude"):
		return FamilyClaude3Other
	case strings.Contains(m, "gpt-4-32k"):
		return FamilyGPT4_32k
	case strings.Contains(m, "gpt-4-turbo"), strings.Contains(m, "128k"):
		return FamilyGPT4Turbo128k
	case strings.Contains(m, "gpt-4"):
		return FamilyGPT4
	case strings.Contains(m, "gpt-3.5-16k"), strings.Contains(m, "gpt-3.5-turbo-16k"):
		return FamilyGPT35_16k
	case strings.Contains(m, "gpt-3.5"):
		return FamilyGPT35
	case strings.Contains(m, "deepseek"):
		return FamilyDeepSeek
	default:
		return FamilyUnknown
	}
}
