package agentmesh

import (
	"context"
	"testing"
	"time"
)

type recordingSink struct {
	events chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan Event, 32)}
}

func (s *recordingSink) Send(ev Event) error {
	s.events <- ev
	return nil
}

func waitForEvent(t *testing.T, sink *recordingSink, eventType string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.events:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", eventType)
		}
	}
}

func newTestWorker(teams map[string]*TeamSpec) (*TaskWorker, *EventBus) {
	bus := NewEventBus(nil)
	executor := NewAgentStreamExecutor(&stubPort{}, bus, nil)
	orchestrator := NewTeamOrchestrator(&stubPort{}, executor, bus, nil)
	worker := NewTaskWorker(newMemoryTaskStore(), bus, orchestrator, teams, nil)
	return worker, bus
}

// memoryTaskStore is a minimal in-process TaskStore for worker tests.
type memoryTaskStore struct {
	tasks map[string]Task
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[string]Task)}
}

func (m *memoryTaskStore) Create(ctx context.Context, t Task) error {
	m.tasks[t.TaskID] = t
	return nil
}

func (m *memoryTaskStore) UpdateStatus(ctx context.Context, taskID string, status TaskStatus) error {
	t := m.tasks[taskID]
	t.Status = status
	m.tasks[taskID] = t
	return nil
}

func (m *memoryTaskStore) Get(ctx context.Context, taskID string) (Task, error) {
	t, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (m *memoryTaskStore) Query(ctx context.Context, q TaskQuery) (TaskPage, error) {
	return TaskPage{}, nil
}

var _ TaskStore = (*memoryTaskStore)(nil)

func TestSubmitEmptyTextIsNoOp(t *testing.T) {
	worker, _ := newTestWorker(map[string]*TeamSpec{})
	defer worker.Shutdown()

	taskID, err := worker.Submit(context.Background(), ConnID("c1"), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if taskID != "" {
		t.Errorf("expected empty task id, got %q", taskID)
	}
}

func TestSubmitUnknownTeamPublishesFailure(t *testing.T) {
	worker, bus := newTestWorker(map[string]*TeamSpec{})
	defer worker.Shutdown()

	sink := newRecordingSink()
	bus.Connect(ConnID("c1"), sink)

	taskID, err := worker.Submit(context.Background(), ConnID("c1"), "hello", "no_such_team")
	if err == nil {
		t.Fatal("expected ConfigError for unknown team")
	}
	if taskID == "" {
		t.Fatal("expected a minted task id even on failure")
	}

	ev := waitForEvent(t, sink, "user_task_submit")
	if ev.Data["status"] != "failed" {
		t.Errorf("expected failed status, got %+v", ev.Data)
	}
}

func TestSubmitKnownTeamPublishesSuccessAndSpawnsRun(t *testing.T) {
	team := &TeamSpec{Name: "general_team", MaxSteps: 1} // no Agents: run fails fast but deterministically
	worker, bus := newTestWorker(map[string]*TeamSpec{"general_team": team})
	defer worker.Shutdown()

	sink := newRecordingSink()
	bus.Connect(ConnID("c1"), sink)

	taskID, err := worker.Submit(context.Background(), ConnID("c1"), "do something", "general_team")
	if err != nil {
		t.Fatal(err)
	}
	if taskID == "" {
		t.Fatal("expected a non-empty task id")
	}

	ev := waitForEvent(t, sink, "user_task_submit")
	if ev.Data["status"] != "success" {
		t.Errorf("expected success status, got %+v", ev.Data)
	}
}

func TestSubmitDefaultsMissingTeamName(t *testing.T) {
	team := &TeamSpec{Name: "general_team", MaxSteps: 1}
	worker, bus := newTestWorker(map[string]*TeamSpec{"general_team": team})
	defer worker.Shutdown()

	sink := newRecordingSink()
	bus.Connect(ConnID("c1"), sink)

	taskID, err := worker.Submit(context.Background(), ConnID("c1"), "hi", "")
	if err != nil {
		t.Fatal(err)
	}
	if taskID == "" {
		t.Fatal("expected non-empty task id")
	}
	waitForEvent(t, sink, "user_task_submit")
}

func TestAddObserverSubscribesToEveryTask(t *testing.T) {
	team := &TeamSpec{Name: "general_team", MaxSteps: 1}
	worker, bus := newTestWorker(map[string]*TeamSpec{"general_team": team})
	defer worker.Shutdown()

	observerSink := newRecordingSink()
	bus.Connect(ConnID("observer"), observerSink)
	worker.AddObserver(ConnID("observer"))

	clientSink := newRecordingSink()
	bus.Connect(ConnID("client"), clientSink)

	taskID, err := worker.Submit(context.Background(), ConnID("client"), "task one", "general_team")
	if err != nil {
		t.Fatal(err)
	}

	ev := waitForEvent(t, observerSink, "user_task_submit")
	if ev.TaskID != taskID {
		t.Errorf("observer received event for wrong task: %q != %q", ev.TaskID, taskID)
	}
}

func TestShutdownWaitsForInFlightRuns(t *testing.T) {
	team := &TeamSpec{Name: "general_team", MaxSteps: 1}
	worker, bus := newTestWorker(map[string]*TeamSpec{"general_team": team})

	sink := newRecordingSink()
	bus.Connect(ConnID("c1"), sink)

	_, err := worker.Submit(context.Background(), ConnID("c1"), "go", "general_team")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		worker.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not return in time")
	}
}
