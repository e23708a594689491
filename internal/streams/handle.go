package streams

import (
	"context"
	"fmt"

	"github.com/quark-run/quark/internal/actorutil"
	"github.com/quark-run/quark/internal/baselib/actor"
)

// Handle is a typed client for a running Broker actor, turning its
// Ask-based BrokerRequest/BrokerResponse protocol into ordinary Go method
// calls. The silo hands it to the WebSocketBridge as its Subscriber;
// implicit fan-out does not go through it (see Registry and Dispatcher).
type Handle struct {
	ref actor.ActorRef[BrokerRequest, BrokerResponse]
}

// NewHandle wraps ref, the ActorRef returned by starting a Broker behavior.
func NewHandle(ref actor.ActorRef[BrokerRequest, BrokerResponse]) *Handle {
	return &Handle{ref: ref}
}

// Subscribe registers an explicit subscriber on (namespace, key) and
// returns its token and delivery channel.
func (h *Handle) Subscribe(ctx context.Context, namespace Namespace, key Key,
	cfg StreamConfig) (string, <-chan Envelope, error) {

	resp, err := h.ask(ctx, SubscribeMsg{Namespace: namespace, Key: key, Config: cfg})
	if err != nil {
		return "", nil, err
	}

	sr, ok := resp.(SubscribeResponse)
	if !ok {
		return "", nil, fmt.Errorf("streams: unexpected response type %T", resp)
	}

	return sr.Token, sr.Messages, nil
}

// Unsubscribe removes a previously registered explicit subscriber.
func (h *Handle) Unsubscribe(ctx context.Context, namespace Namespace, key Key,
	token string) error {

	_, err := h.ask(ctx, UnsubscribeMsg{Namespace: namespace, Key: key, Token: token})
	return err
}

// Publish delivers payload to every explicit subscriber of (namespace, key).
func (h *Handle) Publish(ctx context.Context, namespace Namespace, key Key,
	payload any) (int, error) {

	resp, err := h.ask(ctx, PublishMsg{Namespace: namespace, Key: key, Payload: payload})
	if err != nil {
		return 0, err
	}

	pr, ok := resp.(PublishResponse)
	if !ok {
		return 0, fmt.Errorf("streams: unexpected response type %T", resp)
	}

	return pr.Delivered, nil
}

// Metrics returns the current Metrics snapshot for (namespace, key).
func (h *Handle) Metrics(ctx context.Context, namespace Namespace, key Key) (Metrics, error) {
	resp, err := h.ask(ctx, MetricsMsg{Namespace: namespace, Key: key})
	if err != nil {
		return Metrics{}, err
	}

	mr, ok := resp.(MetricsResponse)
	if !ok {
		return Metrics{}, fmt.Errorf("streams: unexpected response type %T", resp)
	}

	return mr.Metrics, nil
}

func (h *Handle) ask(ctx context.Context, req BrokerRequest) (BrokerResponse, error) {
	return actorutil.AskAwait(ctx, h.ref, req)
}

var _ Subscriber = (*Handle)(nil)
