package membership

import "github.com/btcsuite/btclog/v2"

// Subsystem is the subsystem tag used when registering this package's logger
// with a shared btclog handler set.
const Subsystem = "MEMB"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the membership package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
