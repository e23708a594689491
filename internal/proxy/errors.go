package proxy

import (
	"errors"
	"fmt"

	"github.com/quark-run/quark/internal/transport"
)

// ErrCancelled is returned when a remote call's ResponseFrame reports
// ResultCancelled.
var ErrCancelled = errors.New("proxy: call cancelled")

// ErrTimedOut is returned when a remote call's ResponseFrame reports
// ResultTimedOut.
var ErrTimedOut = errors.New("proxy: call timed out")

// ErrNotFound is returned when a remote call's ResponseFrame reports
// ResultNotFound.
var ErrNotFound = errors.New("proxy: actor not found")

// remoteError turns a non-Ok ResponseFrame into a Go error.
func remoteError(resp transport.ResponseFrame) error {
	switch resp.ResultKind {
	case transport.ResultCancelled:
		return ErrCancelled
	case transport.ResultTimedOut:
		return ErrTimedOut
	case transport.ResultNotFound:
		return ErrNotFound
	case transport.ResultError:
		return fmt.Errorf("proxy: remote error %s: %s",
			resp.ErrorCode, resp.ErrorMessage)
	default:
		return fmt.Errorf("proxy: unexpected result kind %d", resp.ResultKind)
	}
}
