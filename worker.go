package agentmesh

import (
	"context"
	"log/slog"
	"sync"
)

const taskNameMaxLen = 50

// TaskWorker binds a client connection to a team run: it mints a task,
// persists it, subscribes the connection to its events, and spawns an
// isolated goroutine that drives the TeamOrchestrator to completion,
// finally writing the terminal status back to the TaskStore.
type TaskWorker struct {
	store        TaskStore
	bus          *EventBus
	orchestrator *TeamOrchestrator
	teams        map[string]*TeamSpec
	logger       *slog.Logger
	observers    []ConnID

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTaskWorker creates a TaskWorker. teams is the loaded configuration
// document's team roster, keyed by team name.
func NewTaskWorker(store TaskStore, bus *EventBus, orchestrator *TeamOrchestrator, teams map[string]*TeamSpec, logger *slog.Logger) *TaskWorker {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskWorker{
		store:        store,
		bus:          bus,
		orchestrator: orchestrator,
		teams:        teams,
		logger:       logger,
		rootCtx:      ctx,
		cancel:       cancel,
	}
}

// AddObserver registers a connection, already Connected on the Event Bus,
// to be subscribed to every task Submit creates from this point on — for
// a process-wide sink (e.g. telemetry) that watches every run rather than
// one client's own task.
func (w *TaskWorker) AddObserver(id ConnID) {
	w.observers = append(w.observers, id)
}

const defaultTeamName = "general_team"

// Submit handles one `user_input` frame: it validates the request,
// creates the Task row, subscribes conn to the minted task id, and
// spawns the run. Empty text is a no-op: no task is created, nothing is
// published, and the returned task id is "".
func (w *TaskWorker) Submit(ctx context.Context, conn ConnID, text, teamName string) (string, error) {
	if text == "" {
		return "", nil
	}
	if teamName == "" {
		teamName = defaultTeamName
	}

	taskID := NewTaskID()

	team, ok := w.teams[teamName]
	if !ok {
		err := &ConfigError{Kind: "team", Name: teamName}
		w.bus.Subscribe(conn, taskID)
		w.bus.Publish(Event{Type: "user_task_submit", TaskID: taskID, Data: map[string]any{
			"status": "failed", "task_id": taskID, "msg": err.Error(),
		}})
		return taskID, err
	}

	name := text
	if len(name) > taskNameMaxLen {
		name = name[:taskNameMaxLen]
	}
	task := Task{TaskID: taskID, Status: TaskRunning, Name: name, Content: text, SubmitTime: NowUnix()}
	if err := w.store.Create(ctx, task); err != nil {
		return "", err
	}

	w.bus.Subscribe(conn, taskID)
	for _, obs := range w.observers {
		w.bus.Subscribe(obs, taskID)
	}
	w.bus.Publish(Event{Type: "user_task_submit", TaskID: taskID, Data: map[string]any{
		"status": "success", "task_id": taskID,
	}})

	if w.rootCtx.Err() != nil {
		w.logger.Warn("rejecting new task: worker is shutting down", "task_id", taskID)
		return taskID, w.rootCtx.Err()
	}

	w.wg.Add(1)
	go w.run(taskID, team, text)

	return taskID, nil
}

func (w *TaskWorker) run(taskID string, team *TeamSpec, text string) {
	defer w.wg.Done()

	status, err := w.orchestrator.Run(w.rootCtx, taskID, team, text)
	if err != nil {
		w.logger.Warn("team run ended with error", "task_id", taskID, "err", err)
	}

	if upErr := w.store.UpdateStatus(context.Background(), taskID, status); upErr != nil {
		w.logger.Error("failed to persist terminal task status", "task_id", taskID, "err", upErr)
	}
}

// Shutdown cancels the context every run was started with (observed by
// Submit and by the Orchestrator/Executor loops between turns). The same
// cancellation reaches an in-flight model call or tool run, which is cut
// short rather than completed. It then waits for the runs to return and
// tears down the Event Bus.
func (w *TaskWorker) Shutdown() {
	w.cancel()
	w.wg.Wait()
	w.bus.Shutdown()
}
