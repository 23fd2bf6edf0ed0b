package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/agentmesh-go/agentmesh"
)

func TestConvertMessagesFoldsSystemMessagesTogether(t *testing.T) {
	msgs := []agentmesh.Message{
		agentmesh.SystemMessage("be concise"),
		agentmesh.SystemMessage("be kind"),
		agentmesh.UserMessage("hi"),
	}

	out, system, err := convertMessages(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if system != "be concise\n\nbe kind" {
		t.Errorf("system = %q", system)
	}
	if len(out) != 1 {
		t.Errorf("expected system messages excluded from the message array, got %d entries", len(out))
	}
}

func TestConvertMessagesAssistantWithToolCalls(t *testing.T) {
	msgs := []agentmesh.Message{
		{Role: "assistant", Content: "checking", ToolCalls: []agentmesh.ToolCall{
			{ID: "call1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)},
		}},
	}

	out, _, err := convertMessages(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 converted message, got %d", len(out))
	}
}

func TestConvertMessagesAssistantToolCallInvalidArguments(t *testing.T) {
	msgs := []agentmesh.Message{
		{Role: "assistant", ToolCalls: []agentmesh.ToolCall{
			{ID: "call1", Name: "search", Arguments: json.RawMessage(`not json`)},
		}},
	}

	_, _, err := convertMessages(msgs)
	if err == nil {
		t.Fatal("expected an error for malformed tool-call arguments")
	}
}

func TestConvertMessagesToolResult(t *testing.T) {
	msgs := []agentmesh.Message{agentmesh.ToolResultMessage("call1", "result text")}

	out, _, err := convertMessages(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 converted message, got %d", len(out))
	}
}

func TestContentBlocksPlainContent(t *testing.T) {
	blocks := contentBlocks(agentmesh.UserMessage("hello"))
	if len(blocks) != 1 {
		t.Fatalf("expected 1 text block, got %d", len(blocks))
	}
}

func TestContentBlocksEmptyContentYieldsNoBlocks(t *testing.T) {
	blocks := contentBlocks(agentmesh.Message{Role: "user", Content: ""})
	if blocks != nil {
		t.Errorf("expected nil blocks for empty content, got %v", blocks)
	}
}

func TestContentBlocksMultiPartWithImage(t *testing.T) {
	m := agentmesh.Message{Parts: []agentmesh.ContentPart{
		{Type: "text", Text: "what is this"},
		{Type: "image", MimeType: "image/png", Data: "AAAA"},
	}}
	blocks := contentBlocks(m)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestConvertToolsDefaultsEmptyParameters(t *testing.T) {
	tools, err := convertTools([]agentmesh.ToolDefinition{{Name: "noop", Description: "does nothing"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
}

func TestConvertToolsRejectsMalformedSchema(t *testing.T) {
	_, err := convertTools([]agentmesh.ToolDefinition{
		{Name: "bad", Parameters: json.RawMessage(`not json`)},
	})
	if err == nil {
		t.Fatal("expected an error for a malformed parameters schema")
	}
}
