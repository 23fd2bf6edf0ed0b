package agentmesh

import "testing"

func TestComputeBudgetReservesAtLeastFloor(t *testing.T) {
	budget, reserve := computeBudget(10_000)
	if reserve != 4000 {
		t.Errorf("reserve = %d, want 4000 floor", reserve)
	}
	if budget != 6000 {
		t.Errorf("budget = %d, want 6000", budget)
	}
}

func TestComputeBudgetScalesWithWindow(t *testing.T) {
	budget, reserve := computeBudget(200_000)
	if reserve != 40_000 {
		t.Errorf("reserve = %d, want 40000 (20%%)", reserve)
	}
	if budget != 160_000 {
		t.Errorf("budget = %d, want 160000", budget)
	}
}

func TestEstimateTokensPlainContent(t *testing.T) {
	m := Message{Role: "user", Content: "12345678"} // 8 bytes / 4 = 2
	if got := estimateTokens(m); got != 2 {
		t.Errorf("estimateTokens = %d, want 2", got)
	}
}

func TestEstimateTokensEmptyContentFloorsToOne(t *testing.T) {
	m := Message{Role: "user", Content: ""}
	if got := estimateTokens(m); got != 1 {
		t.Errorf("estimateTokens = %d, want 1", got)
	}
}

func TestEstimateTokensMultiPartImageFlatCost(t *testing.T) {
	m := Message{Parts: []ContentPart{
		{Type: "image", Data: "base64data"},
		{Type: "text", Text: "12345678"},
	}}
	if got := estimateTokens(m); got != 1202 {
		t.Errorf("estimateTokens = %d, want 1202", got)
	}
}

func TestTrimToBudgetNeverDropsSystemMessages(t *testing.T) {
	messages := []Message{
		SystemMessage("you are a helpful agent performing a long task"),
	}
	trimmed := trimToBudget(messages, 0)
	if len(trimmed) != 1 {
		t.Errorf("expected system message to survive, got %d messages", len(trimmed))
	}
}

func TestTrimToBudgetDropsOldestFirst(t *testing.T) {
	messages := []Message{
		SystemMessage("sys"),
		UserMessage("first user message, quite long indeed to cost tokens"),
		AssistantMessage("first reply"),
		UserMessage("second"),
	}
	full := estimateHistory(messages)
	trimmed := trimToBudget(messages, full-1)

	if len(trimmed) >= len(messages) {
		t.Fatalf("expected at least one message dropped")
	}
	if trimmed[0].Role != "system" {
		t.Errorf("expected system message retained first, got %+v", trimmed[0])
	}
	for _, m := range trimmed {
		if m.Content == "first user message, quite long indeed to cost tokens" {
			t.Error("expected oldest non-system message to be dropped first")
		}
	}
}

func TestTrimToBudgetPreservesToolCallPairing(t *testing.T) {
	messages := []Message{
		SystemMessage("sys"),
		UserMessage("do the long thing that costs plenty of estimated tokens here"),
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "call1", Name: "search"}}},
		ToolResultMessage("call1", "tool output"),
		AssistantMessage("final"),
	}
	full := estimateHistory(messages)
	trimmed := trimToBudget(messages, full-1)

	for i, m := range trimmed {
		if m.Role == "tool" {
			found := false
			for j := 0; j < i; j++ {
				for _, tc := range trimmed[j].ToolCalls {
					if tc.ID == m.ToolCallID {
						found = true
					}
				}
			}
			if !found {
				t.Errorf("tool message %+v survived without its assistant tool-call message", m)
			}
		}
	}
}

func TestClassifyModelFamily(t *testing.T) {
	cases := []struct {
		modelRef string
		want     ModelFamily
	}{
		{"claude-3-5-sonnet-20241022", FamilyClaude35_37},
		{"claude-3-7-sonnet", FamilyClaude35_37},
		{"claude-3-opus-20240229", FamilyClaude3Opus},
		{"claude-3-haiku", FamilyClaude3Other},
		{"gpt-4-32k", FamilyGPT4_32k},
		{"gpt-4-turbo-preview", FamilyGPT4Turbo128k},
		{"gpt-4", FamilyGPT4},
		{"gpt-3.5-turbo-16k", FamilyGPT35_16k},
		{"gpt-3.5-turbo", FamilyGPT35},
		{"deepseek-chat", FamilyDeepSeek},
		{"some-unknown-model", FamilyUnknown},
	}
	for _, tc := range cases {
		if got := classifyModelFamily(tc.modelRef); got != tc.want {
			t.Errorf("classifyModelFamily(%q) = %v, want %v", tc.modelRef, got, tc.want)
		}
	}
}
