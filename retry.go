package agentmesh

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryPort wraps a ModelPort and automatically retries transient provider
// errors (HTTP 429 Too Many Requests and 503 Service Unavailable) with
// exponential backoff.
type retryPort struct {
	inner       ModelPort
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger
}

// RetryOption configures a retryPort.
type RetryOption func(*retryPort)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryPort) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 1s). Each subsequent delay doubles: baseDelay, 2x, 4x, ...
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryPort) { r.baseDelay = d }
}

// RetryTimeout bounds the entire retry sequence. The zero value (default)
// disables the bound.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryPort) { r.timeout = d }
}

// RetryLogger sets the logger used for retry warnings (default: discard).
func RetryLogger(logger *slog.Logger) RetryOption {
	return func(r *retryPort) { r.logger = logger }
}

// WithRetry wraps p with automatic retry on transient provider errors (429,
// 503). Delays follow the exponential backoff of retryBackoff only; a
// Retry-After value from the provider is not consulted.
func WithRetry(p ModelPort, opts ...RetryOption) ModelPort {
	r := &retryPort{inner: p, maxAttempts: 3, baseDelay: time.Second, logger: slog.New(discardHandler{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retryPort) Name() string { return r.inner.Name() }

// Call implements ModelPort with retry.
func (r *retryPort) Call(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return retryCall(ctx, r.maxAttempts, r.baseDelay, r.inner.Name(), r.logger, func() (Response, error) {
		return r.inner.Call(ctx, req)
	})
}

// CallStream implements ModelPort with retry. Retries are only attempted if
// no chunks have been forwarded yet — once streaming has started, errors
// pass through immediately to avoid emitting duplicate content. The
// returned channel is always closed exactly once.
func (r *retryPort) CallStream(ctx context.Context, req Request) (<-chan Chunk, error) {
	ctx, cancel := r.withTimeout(ctx)
	out := make(chan Chunk)

	go func() {
		defer cancel()
		defer close(out)

		var lastErr error
		for i := 0; i < r.maxAttempts; i++ {
			inner, err := r.inner.CallStream(ctx, req)
			if err != nil {
				if !isTransientErr(err) {
					out <- Chunk{Kind: ChunkError, Message: err.Error()}
					return
				}
				lastErr = err
			} else {
				var forwarded bool
				var terminal Chunk
				for chunk := range inner {
					forwarded = true
					out <- chunk
					if chunk.Kind == ChunkFinishReason || chunk.Kind == ChunkError {
						terminal = chunk
					}
				}
				if terminal.Kind == ChunkError && !forwarded {
					lastErr = errors.New(terminal.Message)
				} else {
					return
				}
				if forwarded {
					return
				}
			}

			r.logger.Warn("retrying transient stream error", "provider", r.inner.Name(), "attempt", i+1, "max_attempts", r.maxAttempts)
			if i < r.maxAttempts-1 {
				if !sleepOrDone(ctx, retryBackoff(r.baseDelay, i)) {
					out <- Chunk{Kind: ChunkError, Message: ctx.Err().Error()}
					return
				}
			}
		}
		if lastErr != nil {
			out <- Chunk{Kind: ChunkError, Message: lastErr.Error()}
		}
	}()

	return out, nil
}

func (r *retryPort) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(r.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// isTransientErr reports whether err is a retryable provider error (429 or
// 503), or a transport-level failure (connection refused, DNS, timeout).
func isTransientErr(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 429 || pe.StatusCode == 503
	}
	var te *TransportError
	return errors.As(err, &te)
}

func retryCall[T any](ctx context.Context, maxAttempts int, base time.Duration, name string, logger *slog.Logger, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil || !isTransientErr(err) {
			return result, err
		}
		last = err
		logger.Warn("retrying transient error", "provider", name, "attempt", i+1, "max_attempts", maxAttempts, "err", err)
		if i < maxAttempts-1 {
			if !sleepOrDone(ctx, retryBackoff(base, i)) {
				return zero, ctx.Err()
			}
		}
	}
	return zero, last
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retryBackoff returns the delay for retry i (0-indexed): base * 2^i, plus
// up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

var _ ModelPort = (*retryPort)(nil)
