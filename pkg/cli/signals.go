package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals cancel the context returned by SignalContext.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalContext returns a context canceled on the first shutdown signal.
// A second signal terminates the process with the default behavior once
// stop has been called.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}
