// Command agentmeshd runs the multi-agent orchestration runtime: it loads
// a team configuration document, wires the Model Ports, tool registry,
// event bus, and task store it describes, and serves the HTTP and
// WebSocket surfaces until signalled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentmesh-go/agentmesh"
	"github.com/agentmesh-go/agentmesh/guardrail"
	"github.com/agentmesh-go/agentmesh/internal/config"
	"github.com/agentmesh-go/agentmesh/modelport/anthropic"
	"github.com/agentmesh-go/agentmesh/modelport/openaicompat"
	"github.com/agentmesh-go/agentmesh/taskstore/postgres"
	"github.com/agentmesh-go/agentmesh/taskstore/sqlite"
	"github.com/agentmesh-go/agentmesh/telemetry"
	transporthttp "github.com/agentmesh-go/agentmesh/transport/http"
	"github.com/agentmesh-go/agentmesh/transport/ws"
	"github.com/agentmesh-go/agentmesh/tools/fetch"
	"github.com/agentmesh-go/agentmesh/tools/file"
	"github.com/agentmesh-go/agentmesh/tools/read"
	"github.com/agentmesh-go/agentmesh/tools/shell"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load config.
	cfg, err := config.Load(envOr("AGENTMESH_CONFIG", "agentmesh.toml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. Telemetry (opt-in via OTEL env vars being set).
	var inst *telemetry.Instruments
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		var shutdown func(context.Context) error
		inst, shutdown, err = telemetry.Init(context.Background())
		if err != nil {
			log.Fatalf("telemetry init: %v", err)
		}
		defer shutdown(context.Background())
		logger.Info("telemetry enabled")
	}

	// 3. Build a ModelPort per configured model, wrapped with retry and,
	// when telemetry is enabled, with telemetry, then assembled into a router
	// keyed by the same names config.BuildTeamSpecs resolves against.
	ports := make(map[string]agentmesh.ModelPort, len(cfg.Models))
	for key, mc := range cfg.Models {
		port, err := buildModelPort(mc)
		if err != nil {
			log.Fatalf("model %q: %v", key, err)
		}
		port = agentmesh.WithRetry(port, agentmesh.RetryLogger(logger))
		if inst != nil {
			ports[key] = telemetry.WrapModelPort(port, inst)
		} else {
			ports[key] = port
		}
	}
	router := agentmesh.NewModelRouter(ports)

	// 4. Tool registry shared across all teams; per-agent subsets are
	// carved out by config.BuildTeamSpecs via ToolRegistry.Subset.
	registry := agentmesh.NewToolRegistry()
	workspacePath := envOr("AGENTMESH_WORKSPACE", ".")
	registry.Add(shell.New(workspacePath, 30))
	registry.Add(file.New(workspacePath))
	registry.Add(fetch.New())
	registry.Add(read.New())

	teams, err := config.BuildTeamSpecs(cfg, ports, registry)
	if err != nil {
		log.Fatalf("build team specs: %v", err)
	}

	// 5. Task store.
	store, closeStore, err := buildTaskStore(cfg.Server)
	if err != nil {
		log.Fatalf("task store: %v", err)
	}
	defer closeStore()

	// 6. Event bus, guarded executor, orchestrator, worker.
	bus := agentmesh.NewEventBus(logger)

	injectionGuard := guardrail.NewInjectionGuard(guardrail.InjectionLogger(logger))
	contentGuard := guardrail.NewContentGuard(guardrail.MaxInputLength(32_000), guardrail.ContentLogger(logger))

	executor := agentmesh.NewAgentStreamExecutor(router, bus, logger,
		agentmesh.WithPreCallGuards(injectionGuard, contentGuard),
		agentmesh.WithPostCallGuards(contentGuard),
	)
	orchestrator := agentmesh.NewTeamOrchestrator(router, executor, bus, logger)
	worker := agentmesh.NewTaskWorker(store, bus, orchestrator, teams, logger)
	defer worker.Shutdown()

	if inst != nil {
		recorderID := agentmesh.ConnID("telemetry-recorder")
		bus.Connect(recorderID, telemetry.NewRecorder(inst))
		worker.AddObserver(recorderID)
	}

	// 7. HTTP + WebSocket surfaces on one mux.
	mux := http.NewServeMux()
	transporthttp.New(store, logger).Mount(mux)
	ws.New(bus, worker, logger).Mount(mux)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "err", err)
	}
}

func buildModelPort(mc config.ModelConfig) (agentmesh.ModelPort, error) {
	switch mc.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: mc.APIKey, BaseURL: mc.BaseURL, DefaultModel: mc.Model})
	case "openai-compat", "":
		return openaicompat.NewProvider(mc.APIKey, mc.BaseURL), nil
	default:
		return nil, &agentmesh.ConfigError{Kind: "model", Name: mc.Provider}
	}
}

// buildTaskStore constructs the configured TaskStore and returns a
// cleanup function to release its underlying connection(s).
func buildTaskStore(sc config.ServerConfig) (agentmesh.TaskStore, func(), error) {
	switch sc.TaskStoreDriver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), sc.TaskStoreDSN)
		if err != nil {
			return nil, func() {}, err
		}
		store := postgres.New(pool)
		if err := store.Init(context.Background()); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return store, pool.Close, nil
	case "sqlite", "":
		dbPath := sc.TaskStoreDSN
		if dbPath == "" {
			dbPath = "agentmesh.db"
		}
		store := sqlite.New(dbPath, sqlite.WithLogger(slog.Default()))
		if err := store.Init(context.Background()); err != nil {
			store.Close()
			return nil, func() {}, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown task_store_driver %q", sc.TaskStoreDriver)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
