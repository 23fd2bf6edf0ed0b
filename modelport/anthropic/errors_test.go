package anthropic

import (
	"errors"
	"testing"

	"github.com/agentmesh-go/agentmesh"
)

func TestWrapErrNilIsNil(t *testing.T) {
	if err := wrapErr("anthropic", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrapErrNonAPIErrorBecomesTransportError(t *testing.T) {
	inner := errors.New("connection reset")
	err := wrapErr("anthropic", inner)

	var transportErr *agentmesh.TransportError
	if e, ok := err.(*agentmesh.TransportError); ok {
		transportErr = e
	} else {
		t.Fatalf("expected *agentmesh.TransportError, got %T", err)
	}
	if transportErr.Provider != "anthropic" {
		t.Errorf("Provider = %q", transportErr.Provider)
	}
	if !errors.Is(transportErr.Err, inner) {
		t.Errorf("expected wrapped error to be the original inner error")
	}
}
