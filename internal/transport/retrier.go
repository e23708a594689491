package transport

import (
	"context"
	"errors"
	"math"
	prand "math/rand"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultNumInvokeRetries   = 3
	DefaultInitialInvokeDelay = 50 * time.Millisecond
	DefaultMaxInvokeDelay     = 2 * time.Second
)

// Invoker is the shape of GrpcTransport.Invoke, so Retrier can wrap any
// implementation (including fakes in tests).
type Invoker func(ctx context.Context, addr string, req RequestFrame) (ResponseFrame, error)

// Retrier wraps an Invoker with jittered exponential backoff bounded to
// transient failure classes, reusing the same doubling-with-jitter shape as
// the state store's transaction retry delay.
type Retrier struct {
	Invoke Invoker

	NumRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
}

// NewRetrier wraps invoke with the default retry budget.
func NewRetrier(invoke Invoker) *Retrier {
	return &Retrier{
		Invoke:            invoke,
		NumRetries:        DefaultNumInvokeRetries,
		InitialRetryDelay: DefaultInitialInvokeDelay,
		MaxRetryDelay:     DefaultMaxInvokeDelay,
	}
}

// isTransient reports whether err represents a transient transport failure
// worth retrying (connection loss, timeout, resource exhaustion,
// unavailability) rather than an application-level rejection.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted:
		return true
	default:
		return false
	}
}

func (r *Retrier) randRetryDelay(attempt int) time.Duration {
	halfDelay := r.InitialRetryDelay / 2
	randDelay := prand.Int63n(int64(r.InitialRetryDelay)) //nolint:gosec
	initialDelay := halfDelay + time.Duration(randDelay)

	if attempt == 0 {
		return initialDelay
	}

	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	actualDelay := initialDelay * factor
	if actualDelay > r.MaxRetryDelay {
		return r.MaxRetryDelay
	}
	return actualDelay
}

// Do invokes req against addr, retrying transient failures with backoff up
// to NumRetries times.
func (r *Retrier) Do(ctx context.Context, addr string,
	req RequestFrame) (ResponseFrame, error) {

	var lastErr error
	for attempt := 0; attempt <= r.NumRetries; attempt++ {
		resp, err := r.Invoke(ctx, addr, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransient(err) {
			return ResponseFrame{}, err
		}

		if attempt == r.NumRetries {
			break
		}

		delay := r.randRetryDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ResponseFrame{}, ctx.Err()
		}
	}

	return ResponseFrame{}, lastErr
}
