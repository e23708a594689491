package host

import (
	"context"
	"errors"

	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/transport"
)

// FrameHandler adapts a Host to transport.FrameHandler, letting a
// transport.Server route inbound RequestFrames straight into the silo's
// local activations without the caller knowing it crossed a network
// boundary.
type FrameHandler struct {
	host *Host
}

// NewFrameHandler wraps h for use as a transport.Server's FrameHandler.
func NewFrameHandler(h *Host) *FrameHandler {
	return &FrameHandler{host: h}
}

// HandleRequest implements transport.FrameHandler.
func (fh *FrameHandler) HandleRequest(ctx context.Context,
	req transport.RequestFrame) transport.ResponseFrame {

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	result, err := fh.host.Dispatch(ctx, Invocation{
		Key: identity.Key{
			Type: req.ActorType,
			ID:   req.ActorID,
		},
		Method:  req.MethodName,
		Args:    req.ArgsBlob,
		ChainID: req.ChainID,
	})
	if err != nil {
		return transport.ResponseFrame{
			CorrelationID: req.CorrelationID,
			ResultKind:    resultKindFor(err),
			ErrorMessage:  err.Error(),
		}
	}

	return transport.ResponseFrame{
		CorrelationID: req.CorrelationID,
		ResultKind:    transport.ResultOk,
		ResultBlob:    result.Payload,
	}
}

// HandleCancel implements transport.FrameHandler. Dispatch runs synchronously
// to completion rather than registering cancellable work, so there is
// nothing in-flight to abandon; the caller's ctx cancellation already
// unblocks HandleRequest via mergeContexts.
func (fh *FrameHandler) HandleCancel(ctx context.Context, cancel transport.CancelFrame) {
	log.DebugS(ctx, "received cancel for completed-or-unknown request",
		"correlation_id", cancel.CorrelationID)
}

func resultKindFor(err error) transport.ResultKind {
	switch {
	case errors.Is(err, ErrUnknownActorType), errors.Is(err, ErrUnknownMethod):
		return transport.ResultNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return transport.ResultTimedOut
	case errors.Is(err, context.Canceled):
		return transport.ResultCancelled
	default:
		return transport.ResultError
	}
}

var _ transport.FrameHandler = (*FrameHandler)(nil)
