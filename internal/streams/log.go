package streams

import (
	"errors"

	"github.com/btcsuite/btclog/v2"
)

// Subsystem is the subsystem tag used when registering this package's
// logger with a shared btclog handler set.
const Subsystem = "STRM"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the streams package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// ErrUnknownRequest is returned when Broker.Receive is given a BrokerRequest
// type it doesn't recognize.
var ErrUnknownRequest = errors.New("streams: unknown broker request type")
