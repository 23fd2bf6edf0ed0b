package anthropic

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentmesh-go/agentmesh"
)

// maxEmptyStreamEvents bounds how many consecutive events may go unhandled
// (unrecognised types, empty deltas, non-tool block starts) before the
// stream is treated as malformed and aborted.
const maxEmptyStreamEvents = 300

// processStream drains an Anthropic SSE stream into agentmesh.Chunks. It
// always sends exactly one terminal chunk (ChunkFinishReason or ChunkError)
// before returning; the caller closes ch.
func processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], ch chan<- agentmesh.Chunk, provider string) {
	var toolIndex int
	var inToolUse bool
	var toolID, toolName string
	var toolInput strings.Builder

	emptyEvents := 0

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				toolID = toolUse.ID
				toolName = toolUse.Name
				toolInput.Reset()
				inToolUse = true
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					ch <- agentmesh.Chunk{Kind: agentmesh.ChunkDeltaContent, DeltaContent: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inToolUse {
				d := agentmesh.ToolCallDelta{Index: toolIndex, ID: toolID, Name: toolName, ArgumentsFragment: toolInput.String()}
				ch <- agentmesh.Chunk{Kind: agentmesh.ChunkDeltaToolCall, DeltaToolCall: d}
				toolIndex++
				inToolUse = false
				processed = true
			}

		case "message_delta", "message_start":
			processed = true

		case "message_stop":
			ch <- agentmesh.Chunk{Kind: agentmesh.ChunkFinishReason, FinishReason: "stop"}
			return

		case "error":
			ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: "anthropic stream error"}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: "stream appears malformed: too many empty events"}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: wrapErr(provider, err).Error()}
		return
	}
	ch <- agentmesh.Chunk{Kind: agentmesh.ChunkFinishReason, FinishReason: "stop"}
}
