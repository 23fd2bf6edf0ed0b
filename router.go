package agentmesh

import (
	"context"
	"fmt"
)

// ModelRouter is a ModelPort that dispatches each call to one of several
// underlying ports by Request.ModelName. It is how a team's per-agent
// model references (distinct providers, distinct credentials) are
// realized as the single ModelPort the Executor and Orchestrator are
// built against.
type ModelRouter struct {
	ports map[string]ModelPort
}

// NewModelRouter creates a router over ports, keyed by the model name
// callers will set in Request.ModelName.
func NewModelRouter(ports map[string]ModelPort) *ModelRouter {
	return &ModelRouter{ports: ports}
}

func (r *ModelRouter) resolve(modelName string) (ModelPort, error) {
	p, ok := r.ports[modelName]
	if !ok {
		return nil, &ConfigError{Kind: "model", Name: modelName}
	}
	return p, nil
}

func (r *ModelRouter) Call(ctx context.Context, req Request) (Response, error) {
	p, err := r.resolve(req.ModelName)
	if err != nil {
		return Response{}, err
	}
	return p.Call(ctx, req)
}

func (r *ModelRouter) CallStream(ctx context.Context, req Request) (<-chan Chunk, error) {
	p, err := r.resolve(req.ModelName)
	if err != nil {
		return nil, err
	}
	return p.CallStream(ctx, req)
}

func (r *ModelRouter) Name() string { return "router" }

var _ ModelPort = (*ModelRouter)(nil)

// String is a convenience for error messages and logging.
func (r *ModelRouter) String() string {
	return fmt.Sprintf("ModelRouter(%d ports)", len(r.ports))
}
