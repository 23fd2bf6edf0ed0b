// Package ws serves the task processing WebSocket surface: one
// connection per client at /api/v1/task/process, decoding inbound
// {event, data} frames and re-publishing Event Bus traffic as outbound
// {event, task_id, timestamp, data} frames.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentmesh-go/agentmesh"
)

const (
	maxPayloadBytes = 1 << 20
	writeWait       = 10 * time.Second
	pongWait        = 45 * time.Second
	pingInterval    = (pongWait * 9) / 10
	sendBuffer      = 64
)

// Worker is the subset of TaskWorker the handler needs, so tests can
// substitute a fake.
type Worker interface {
	Submit(ctx context.Context, conn agentmesh.ConnID, text, team string) (string, error)
}

// Handler upgrades HTTP requests to WebSocket connections and wires each
// one into the Event Bus as an agentmesh.Sink.
type Handler struct {
	bus      *agentmesh.EventBus
	worker   Worker
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a Handler. bus is the Event Bus every connection is
// Connected to; worker is handed inbound user_input frames.
func New(bus *agentmesh.EventBus, worker Worker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bus:    bus,
		worker: worker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mount registers the handler at /api/v1/task/process on mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.Handle("/api/v1/task/process", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &session{
		id:     agentmesh.ConnID(uuid.NewString()),
		conn:   conn,
		bus:    h.bus,
		worker: h.worker,
		logger: h.logger,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	h.bus.Connect(session.id, session)
	session.run()
}

// session is one client connection. It implements agentmesh.Sink by
// marshaling Events into the outbound frame shape and queueing them on
// send, which writeLoop drains onto the socket.
type session struct {
	id     agentmesh.ConnID
	conn   *websocket.Conn
	bus    *agentmesh.EventBus
	worker Worker
	logger *slog.Logger

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type userInputData struct {
	Text string `json:"text"`
	Team string `json:"team"`
}

type outboundFrame struct {
	Event     string         `json:"event"`
	TaskID    string         `json:"task_id"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// outboundEvents is the §6 wire contract's set of client-facing frame
// types. Internal-only Event Bus types (turn_start, message_update,
// error) are never forwarded to a client; tool_execution_start and
// tool_execution_end are translated into tool_decision and tool_execute.
var outboundEvents = map[string]bool{
	"user_task_submit": true,
	"agent_decision":   true,
	"agent_thinking":   true,
	"tool_decision":    true,
	"tool_execute":     true,
	"agent_result":     true,
	"task_result":      true,
}

// translateOutbound maps an internal Event onto its §6 wire frame,
// reporting false for event types the WebSocket surface never forwards
// (turn_start, message_update, error — internal bookkeeping with no
// client-facing shape).
func translateOutbound(ev agentmesh.Event) (string, map[string]any, bool) {
	switch ev.Type {
	case "tool_execution_start":
		return "tool_decision", map[string]any{
			"agent_id":   ev.Data["agent_id"],
			"tool_id":    ev.Data["tool_call_id"],
			"tool_name":  ev.Data["name"],
			"thought":    ev.Data["thought"],
			"parameters": parseArguments(ev.Data["arguments"]),
		}, true
	case "tool_execution_end":
		return "tool_execute", map[string]any{
			"agent_id":       ev.Data["agent_id"],
			"tool_id":        ev.Data["tool_call_id"],
			"tool_name":      toolResultName(ev.Data["result"]),
			"status":         ev.Data["status"],
			"execution_time": ev.Data["duration"],
			"tool_result":    ev.Data["result"],
		}, true
	default:
		if outboundEvents[ev.Type] {
			return ev.Type, ev.Data, true
		}
		return "", nil, false
	}
}

// parseArguments decodes a tool call's JSON arguments string into the
// object shape the §6 tool_decision frame's parameters field expects,
// falling back to an empty object for malformed or absent arguments.
func parseArguments(raw any) map[string]any {
	s, _ := raw.(string)
	params := map[string]any{}
	if s == "" {
		return params
	}
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return map[string]any{}
	}
	return params
}

// toolResultName extracts the tool name back out of a ToolResult value
// for the tool_execute frame's tool_name field.
func toolResultName(result any) string {
	if r, ok := result.(agentmesh.ToolResult); ok {
		return r.ToolName
	}
	return ""
}

// Send implements agentmesh.Sink. Called from the Event Bus's
// per-connection delivery goroutine; never called concurrently with
// itself.
func (s *session) Send(ev agentmesh.Event) error {
	eventName, data, ok := translateOutbound(ev)
	if !ok {
		return nil
	}
	frame := outboundFrame{
		Event:     eventName,
		TaskID:    ev.TaskID,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Data:      data,
	}
	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case s.send <- body:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *session) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.bus.Disconnect(s.id)
		close(s.send)
		_ = s.conn.Close()
	})
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("malformed inbound frame", "conn_id", s.id, "err", err)
			continue
		}

		switch frame.Event {
		case "user_input":
			s.handleUserInput(frame.Data)
		default:
			s.logger.Warn("unrecognized inbound event", "conn_id", s.id, "event", frame.Event)
		}
	}
}

func (s *session) handleUserInput(raw json.RawMessage) {
	var in userInputData
	if err := json.Unmarshal(raw, &in); err != nil {
		s.logger.Warn("malformed user_input data", "conn_id", s.id, "err", err)
		return
	}
	if in.Team == "" {
		in.Team = "general_team"
	}
	if _, err := s.worker.Submit(s.ctx, s.id, in.Text, in.Team); err != nil {
		s.logger.Warn("task submit failed", "conn_id", s.id, "err", err)
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ agentmesh.Sink = (*session)(nil)
