package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRetrierSucceedsWithoutRetryOnFirstSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	r := NewRetrier(func(_ context.Context, _ string, _ RequestFrame) (ResponseFrame, error) {
		calls++
		return ResponseFrame{ResultKind: ResultOk}, nil
	})

	resp, err := r.Do(context.Background(), "addr", RequestFrame{})
	require.NoError(t, err)
	require.Equal(t, ResultOk, resp.ResultKind)
	require.Equal(t, 1, calls)
}

func TestRetrierRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	r := NewRetrier(func(_ context.Context, _ string, _ RequestFrame) (ResponseFrame, error) {
		calls++
		if calls < 3 {
			return ResponseFrame{}, status.Error(codes.Unavailable, "down")
		}
		return ResponseFrame{ResultKind: ResultOk}, nil
	})
	r.InitialRetryDelay = 1
	r.MaxRetryDelay = 1

	resp, err := r.Do(context.Background(), "addr", RequestFrame{})
	require.NoError(t, err)
	require.Equal(t, ResultOk, resp.ResultKind)
	require.Equal(t, 3, calls)
}

func TestRetrierDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := status.Error(codes.InvalidArgument, "bad request")
	r := NewRetrier(func(_ context.Context, _ string, _ RequestFrame) (ResponseFrame, error) {
		calls++
		return ResponseFrame{}, permanent
	})

	_, err := r.Do(context.Background(), "addr", RequestFrame{})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetrierGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	r := NewRetrier(func(_ context.Context, _ string, _ RequestFrame) (ResponseFrame, error) {
		calls++
		return ResponseFrame{}, status.Error(codes.Unavailable, "down")
	})
	r.NumRetries = 2
	r.InitialRetryDelay = 1
	r.MaxRetryDelay = 1

	_, err := r.Do(context.Background(), "addr", RequestFrame{})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestIsTransientClassifiesNonStatusErrors(t *testing.T) {
	t.Parallel()

	require.False(t, isTransient(nil))
	require.False(t, isTransient(errors.New("some local error")))
	require.True(t, isTransient(context.DeadlineExceeded))
}
