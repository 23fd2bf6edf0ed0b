// Package agentmesh is a multi-agent orchestration runtime.
//
// It coordinates several LLM-backed agents that take turns solving a
// user-submitted task, each invoking tools through a reason/act loop
// driven by tool-calling language models. Results stream incrementally to
// subscribers over a typed event bus.
//
// # Core Interfaces
//
//   - [ModelPort] — uniform request/response + streaming interface over
//     heterogeneous LLM providers
//   - [Tool] — a named capability, callable by the LLM (pre-process) or
//     run automatically after an agent's final answer (post-process)
//   - [TaskStore] — CRUD persistence for [Task] rows
//
// # Core Components
//
//   - [AgentStreamExecutor] — runs one agent's reason/act loop
//   - [TeamOrchestrator] — decides, after every agent turn, who acts next
//   - [EventBus] — per-task publish/subscribe event multiplexer
//   - [TaskWorker] — binds a client connection to a team run
//
// # Included Implementations
//
// Model ports: modelport/openaicompat, modelport/anthropic.
// Task stores: taskstore/sqlite, taskstore/postgres.
// Tools: tools/shell, tools/fetch, tools/read, tools/file.
//
// See cmd/agentmeshd for a reference application wiring these together
// behind the transport/http and transport/ws adapters.
package agentmesh
