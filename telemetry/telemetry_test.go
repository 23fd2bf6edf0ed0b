package telemetry

import "testing"

func TestNewInstrumentsPopulatesEveryInstrument(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments returned error: %v", err)
	}
	if inst.Tracer == nil || inst.Meter == nil || inst.Logger == nil {
		t.Fatal("expected Tracer, Meter, and Logger to be populated")
	}
	if inst.TokenUsage == nil || inst.LLMRequests == nil || inst.ToolExecutions == nil ||
		inst.DecisionCount == nil || inst.StepsUsed == nil {
		t.Fatal("expected every counter instrument to be populated")
	}
	if inst.LLMDuration == nil || inst.ToolDuration == nil || inst.AgentDuration == nil || inst.DecisionDuration == nil {
		t.Fatal("expected every histogram instrument to be populated")
	}
}
