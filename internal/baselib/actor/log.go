package actor

import "github.com/btcsuite/btclog/v2"

// Subsystem is the subsystem name used when registering this package's
// logger with a shared btclog handler set.
const Subsystem = "ACTR"

// log is the package-level logger used throughout the actor package. It
// defaults to a disabled logger so the package is silent until the hosting
// application wires up a real logger via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the actor package.
// Applications hosting the actor system should call this once at startup,
// typically with a logger obtained from a shared btclog handler set.
func UseLogger(logger btclog.Logger) {
	log = logger
}
