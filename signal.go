package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptExitCode is the conventional status for a SIGINT-terminated process.
const interruptExitCode = 130

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// shutdownContext returns a context canceled by the first SIGINT/SIGTERM.
// Cancellation aborts the in-flight handshake or query; nothing is persisted
// and no gears.json is written. A second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, stop := signal.NotifyContext(parent, shutdownSignals...)

	context.AfterFunc(ctx, func() {
		stop()

		if parent.Err() != nil {
			return
		}

		logger.Info("interrupted, abandoning the current request")
		exitOnSecondSignal(parent, logger)
	})

	return ctx
}

// exitOnSecondSignal blocks until another signal arrives or parent is done.
func exitOnSecondSignal(parent context.Context, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing exit", slog.String("signal", sig.String()))
		os.Exit(interruptExitCode)
	case <-parent.Done():
	}
}
