package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/agentmesh-go/agentmesh"
)

// streamSSE reads an SSE stream from body and emits agentmesh.Chunks on
// ch. It always emits exactly one terminal chunk (ChunkFinishReason or
// ChunkError) before returning, and never closes ch itself — the caller
// owns the channel lifecycle.
//
// SSE format expected:
//
//	data: {"choices":[...]}\n
//	data: [DONE]\n
func streamSSE(ctx context.Context, body io.Reader, ch chan<- agentmesh.Chunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	finishReason := "stop"

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta == nil {
			continue
		}
		if chunk.Choices[0].FinishReason != "" {
			finishReason = chunk.Choices[0].FinishReason
		}

		if delta.Content != "" {
			select {
			case ch <- agentmesh.Chunk{Kind: agentmesh.ChunkDeltaContent, DeltaContent: delta.Content}:
			case <-ctx.Done():
				ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: ctx.Err().Error()}
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			d := agentmesh.ToolCallDelta{Index: tc.Index, ID: tc.ID, Name: tc.Function.Name, ArgumentsFragment: tc.Function.Arguments}
			select {
			case ch <- agentmesh.Chunk{Kind: agentmesh.ChunkDeltaToolCall, DeltaToolCall: d}:
			case <-ctx.Done():
				ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: ctx.Err().Error()}
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		ch <- agentmesh.Chunk{Kind: agentmesh.ChunkError, Message: err.Error()}
		return
	}
	ch <- agentmesh.Chunk{Kind: agentmesh.ChunkFinishReason, FinishReason: finishReason}
}
