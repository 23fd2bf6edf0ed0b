package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentmesh-go/agentmesh"
)

type fakeWorker struct {
	mu   sync.Mutex
	text string
	team string
}

func (f *fakeWorker) Submit(ctx context.Context, conn agentmesh.ConnID, text, team string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.team = text, team
	return "task-1", nil
}

func (f *fakeWorker) snapshot() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.team
}

func dialTestServer(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	mux := http.NewServeMux()
	handler.Mount(mux)
	srv := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/task/process"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHandlerDispatchesUserInput(t *testing.T) {
	bus := agentmesh.NewEventBus(nil)
	worker := &fakeWorker{}
	handler := New(bus, worker, nil)

	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	frame := map[string]any{
		"event": "user_input",
		"data":  map[string]any{"text": "hello there", "team": "research_team"},
	}
	data, _ := json.Marshal(frame)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		text, team := worker.snapshot()
		if text == "hello there" && team == "research_team" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("worker.Submit was not called with expected args")
}

func TestHandlerDefaultsTeam(t *testing.T) {
	bus := agentmesh.NewEventBus(nil)
	worker := &fakeWorker{}
	handler := New(bus, worker, nil)

	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	frame := map[string]any{"event": "user_input", "data": map[string]any{"text": "hi"}}
	data, _ := json.Marshal(frame)
	conn.WriteMessage(websocket.TextMessage, data)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, team := worker.snapshot()
		if team == "general_team" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected default team general_team")
}

func TestHandlerIgnoresUnknownEvent(t *testing.T) {
	bus := agentmesh.NewEventBus(nil)
	worker := &fakeWorker{}
	handler := New(bus, worker, nil)

	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	frame := map[string]any{"event": "bogus", "data": map[string]any{}}
	data, _ := json.Marshal(frame)
	conn.WriteMessage(websocket.TextMessage, data)

	time.Sleep(50 * time.Millisecond)
	text, _ := worker.snapshot()
	if text != "" {
		t.Errorf("expected no submit for unknown event, got text=%q", text)
	}
}

func TestSessionSendTranslatesToolExecutionStartToToolDecision(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &session{id: agentmesh.ConnID("conn-1"), send: make(chan []byte, 1), ctx: ctx}

	err := s.Send(agentmesh.Event{
		Type:   "tool_execution_start",
		TaskID: "task-42",
		Data: map[string]any{
			"agent_id":     "researcher",
			"tool_call_id": "call-1",
			"name":         "search",
			"arguments":    `{"query":"go modules"}`,
			"thought":      "I should search for that",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	raw := <-s.send
	var frame outboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Event != "tool_decision" {
		t.Errorf("Event = %q, want tool_decision", frame.Event)
	}
	if frame.Data["agent_id"] != "researcher" || frame.Data["tool_id"] != "call-1" || frame.Data["tool_name"] != "search" {
		t.Errorf("unexpected data: %+v", frame.Data)
	}
	if frame.Data["thought"] != "I should search for that" {
		t.Errorf("unexpected thought: %+v", frame.Data["thought"])
	}
	params, ok := frame.Data["parameters"].(map[string]any)
	if !ok || params["query"] != "go modules" {
		t.Errorf("unexpected parameters: %+v", frame.Data["parameters"])
	}
}

func TestSessionSendTranslatesToolExecutionEndToToolExecute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &session{id: agentmesh.ConnID("conn-1"), send: make(chan []byte, 1), ctx: ctx}

	err := s.Send(agentmesh.Event{
		Type:   "tool_execution_end",
		TaskID: "task-42",
		Data: map[string]any{
			"agent_id":     "researcher",
			"tool_call_id": "call-1",
			"status":       "success",
			"duration":     0.42,
			"result":       agentmesh.ToolResult{ToolName: "search", Status: "success", Output: "x"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	raw := <-s.send
	var frame outboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Event != "tool_execute" {
		t.Errorf("Event = %q, want tool_execute", frame.Event)
	}
	if frame.Data["tool_id"] != "call-1" || frame.Data["tool_name"] != "search" || frame.Data["status"] != "success" {
		t.Errorf("unexpected data: %+v", frame.Data)
	}
	if frame.Data["execution_time"] != 0.42 {
		t.Errorf("unexpected execution_time: %+v", frame.Data["execution_time"])
	}
}

func TestSessionSendDropsInternalOnlyEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &session{id: agentmesh.ConnID("conn-1"), send: make(chan []byte, 1), ctx: ctx}

	for _, evType := range []string{"turn_start", "message_update", "error"} {
		if err := s.Send(agentmesh.Event{Type: evType, TaskID: "task-42", Data: map[string]any{}}); err != nil {
			t.Fatalf("Send(%q) returned error: %v", evType, err)
		}
		select {
		case frame := <-s.send:
			t.Errorf("expected %q to be dropped, got queued frame %s", evType, frame)
		default:
		}
	}
}

func TestSessionSendMarshalsOutboundFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &session{
		id:   agentmesh.ConnID("conn-1"),
		send: make(chan []byte, 1),
		ctx:  ctx,
	}

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := s.Send(agentmesh.Event{
		Type:      "agent_result",
		TaskID:    "task-42",
		Timestamp: ts,
		Data:      map[string]any{"agent_id": "a1", "result": "done"},
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case raw := <-s.send:
		var frame outboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatal(err)
		}
		if frame.Event != "agent_result" || frame.TaskID != "task-42" {
			t.Errorf("unexpected frame: %+v", frame)
		}
		if frame.Timestamp != "2026-01-02T03:04:05Z" {
			t.Errorf("unexpected timestamp: %s", frame.Timestamp)
		}
		if frame.Data["agent_id"] != "a1" {
			t.Errorf("unexpected data: %+v", frame.Data)
		}
	default:
		t.Fatal("expected a queued frame")
	}
}
