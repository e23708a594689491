package streams

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/quark-run/quark/internal/baselib/actor"
)

type streamID struct {
	namespace Namespace
	key       Key
}

type subscriber struct {
	token string
	ch    chan Envelope
	cfg   StreamConfig

	// throttleWindowStart and throttleCount implement the Throttle
	// policy: at most cfg.MaxPerWindow sends are admitted per
	// cfg.Window, reset whenever the window elapses.
	throttleWindowStart time.Time
	throttleCount       int
}

// Broker is the actor-owned stream hub: every mutation of its subscriber
// maps happens inside Receive, on the broker's own turn, exactly the
// single-threaded-by-construction property the teacher's NotificationHub
// relies on to avoid a mutex.
type Broker struct {
	subscribers map[streamID][]*subscriber
	metrics     map[streamID]*counters

	nextToken uint64
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[streamID][]*subscriber),
		metrics:     make(map[streamID]*counters),
	}
}

// Receive implements actor.ActorBehavior by dispatching to type-specific
// handlers, mirroring the teacher's NotificationHub.Receive switch.
func (b *Broker) Receive(ctx context.Context,
	msg BrokerRequest) fn.Result[BrokerResponse] {

	switch m := msg.(type) {
	case SubscribeMsg:
		return fn.Ok[BrokerResponse](b.handleSubscribe(m))

	case UnsubscribeMsg:
		return fn.Ok[BrokerResponse](b.handleUnsubscribe(m))

	case PublishMsg:
		return fn.Ok[BrokerResponse](b.handlePublish(ctx, m))

	case MetricsMsg:
		return fn.Ok[BrokerResponse](b.handleMetrics(m))

	default:
		return fn.Err[BrokerResponse](ErrUnknownRequest)
	}
}

func (b *Broker) handleSubscribe(msg SubscribeMsg) SubscribeResponse {
	id := streamID{namespace: msg.Namespace, key: msg.Key}

	cfg := msg.Config
	if cfg.BufferSize <= 0 {
		cfg = DefaultStreamConfig()
	}

	b.nextToken++
	token := msg.SubscriberID
	if token == "" {
		token = uuid.NewString()
	}

	sub := &subscriber{
		token: token,
		ch:    make(chan Envelope, cfg.BufferSize),
		cfg:   cfg,
	}

	b.subscribers[id] = append(b.subscribers[id], sub)
	if _, ok := b.metrics[id]; !ok {
		b.metrics[id] = &counters{}
	}

	return SubscribeResponse{Token: token, Messages: sub.ch}
}

func (b *Broker) handleUnsubscribe(msg UnsubscribeMsg) UnsubscribeResponse {
	id := streamID{namespace: msg.Namespace, key: msg.Key}

	subs := b.subscribers[id]
	for i, s := range subs {
		if s.token == msg.Token {
			close(s.ch)
			b.subscribers[id] = append(subs[:i], subs[i+1:]...)
			if len(b.subscribers[id]) == 0 {
				delete(b.subscribers, id)
			}
			break
		}
	}

	return UnsubscribeResponse{}
}

func (b *Broker) handlePublish(ctx context.Context, msg PublishMsg) PublishResponse {
	id := streamID{namespace: msg.Namespace, key: msg.Key}

	counter, ok := b.metrics[id]
	if !ok {
		counter = &counters{}
		b.metrics[id] = counter
	}

	envelope := Envelope{Namespace: msg.Namespace, Key: msg.Key, Payload: msg.Payload}

	delivered := 0
	for _, sub := range b.subscribers[id] {
		if b.deliver(ctx, sub, envelope, counter) {
			delivered++
		}
	}

	return PublishResponse{Delivered: delivered}
}

// deliver applies sub's backpressure policy to sending envelope, updating
// counter accordingly. It returns whether the message was ultimately
// accepted into the subscriber's buffer.
func (b *Broker) deliver(ctx context.Context, sub *subscriber, envelope Envelope,
	counter *counters) bool {

	switch sub.cfg.Policy {
	case DropNewest:
		select {
		case sub.ch <- envelope:
			counter.incPublished()
			return true
		default:
			counter.incDropped()
			return false
		}

	case DropOldest:
		for {
			select {
			case sub.ch <- envelope:
				counter.incPublished()
				return true
			default:
			}

			select {
			case <-sub.ch:
				counter.incDropped()
			default:
				// Someone else drained it first; retry the send.
			}
		}

	case Throttle:
		now := time.Now()
		if sub.throttleWindowStart.IsZero() ||
			now.Sub(sub.throttleWindowStart) >= sub.cfg.Window {
			sub.throttleWindowStart = now
			sub.throttleCount = 0
		}
		if sub.throttleCount >= sub.cfg.MaxPerWindow {
			counter.incThrottled()
			return false
		}
		sub.throttleCount++

		select {
		case sub.ch <- envelope:
			counter.incPublished()
			return true
		default:
			counter.incDropped()
			return false
		}

	default: // Block
		select {
		case sub.ch <- envelope:
			counter.incPublished()
			return true
		case <-ctx.Done():
			counter.incDropped()
			return false
		}
	}
}

func (b *Broker) handleMetrics(msg MetricsMsg) MetricsResponse {
	id := streamID{namespace: msg.Namespace, key: msg.Key}

	counter, ok := b.metrics[id]
	if !ok {
		return MetricsResponse{}
	}

	var utilization float64
	if subs := b.subscribers[id]; len(subs) > 0 {
		sub := subs[0]
		if cap(sub.ch) > 0 {
			utilization = float64(len(sub.ch)) / float64(cap(sub.ch))
		}
	}

	return MetricsResponse{Metrics: counter.snapshot(utilization)}
}

var _ actor.ActorBehavior[BrokerRequest, BrokerResponse] = (*Broker)(nil)
