package shared

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
)

// SignalContext returns a context that ends on SIGINT or SIGTERM. Calling
// stop ends it early and releases the signal handler.
func SignalContext(logger *log.Logger) (ctx context.Context, stop context.CancelFunc) {
	ctx, stop = context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logger.Info("Received signal, shutting down", "signal", sig)
			stop()
		case <-ctx.Done():
		}
	}()
	return ctx, stop
}
