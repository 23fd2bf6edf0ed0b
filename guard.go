package agentmesh

import "context"

// PreCallGuard inspects or rewrites a Request before it reaches the Model
// Port. Returning *ErrHalt stops the turn: the Executor skips the call and
// treats ErrHalt.Response as the agent's final output for the turn.
type PreCallGuard interface {
	PreCall(ctx context.Context, req *Request) error
}

// PostCallGuard inspects or rewrites a Response after the model answers,
// before it is folded into the conversation history. Returning *ErrHalt
// replaces resp.Message.Content with ErrHalt.Response.
type PostCallGuard interface {
	PostCall(ctx context.Context, resp *Response) error
}
