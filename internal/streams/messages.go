package streams

import "github.com/quark-run/quark/internal/baselib/actor"

// BrokerRequest is the union type for all stream broker requests.
type BrokerRequest interface {
	actor.Message
	isBrokerRequest()
}

// BrokerResponse is the union type for all stream broker responses.
type BrokerResponse interface {
	isBrokerResponse()
}

func (SubscribeMsg) isBrokerRequest()   {}
func (UnsubscribeMsg) isBrokerRequest() {}
func (PublishMsg) isBrokerRequest()     {}
func (MetricsMsg) isBrokerRequest()     {}

func (SubscribeResponse) isBrokerResponse()   {}
func (UnsubscribeResponse) isBrokerResponse() {}
func (PublishResponse) isBrokerResponse()     {}
func (MetricsResponse) isBrokerResponse()     {}

// Envelope is one delivered message on an explicit subscription's channel.
type Envelope struct {
	Namespace Namespace
	Key       Key
	Payload   any
}

// SubscribeMsg registers an explicit subscriber on (Namespace, Key).
type SubscribeMsg struct {
	actor.BaseMessage

	Namespace    Namespace
	Key          Key
	SubscriberID string
	Config       StreamConfig
}

// MessageType implements actor.Message.
func (SubscribeMsg) MessageType() string { return "SubscribeMsg" }

// SubscribeResponse returns the channel the subscriber should read
// Envelopes from, and the token to later Unsubscribe with.
type SubscribeResponse struct {
	Token    string
	Messages <-chan Envelope
}

// UnsubscribeMsg removes a previously registered subscriber.
type UnsubscribeMsg struct {
	actor.BaseMessage

	Namespace Namespace
	Key       Key
	Token     string
}

// MessageType implements actor.Message.
func (UnsubscribeMsg) MessageType() string { return "UnsubscribeMsg" }

// UnsubscribeResponse is the response to UnsubscribeMsg.
type UnsubscribeResponse struct{}

// PublishMsg delivers Payload to every explicit subscriber of (Namespace,
// Key), honoring each subscriber's backpressure policy.
type PublishMsg struct {
	actor.BaseMessage

	Namespace Namespace
	Key       Key
	Payload   any
}

// MessageType implements actor.Message.
func (PublishMsg) MessageType() string { return "PublishMsg" }

// PublishResponse reports how many subscribers actually received Payload.
type PublishResponse struct {
	Delivered int
}

// MetricsMsg asks for the current Metrics of a stream.
type MetricsMsg struct {
	actor.BaseMessage

	Namespace Namespace
	Key       Key
}

// MessageType implements actor.Message.
func (MetricsMsg) MessageType() string { return "MetricsMsg" }

// MetricsResponse carries the requested stream's Metrics.
type MetricsResponse struct {
	Metrics Metrics
}
