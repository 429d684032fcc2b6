// Package server coordinates the zone server's listeners: ordered startup,
// signal-driven shutdown, and reverse-order stop with session draining.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Listener is a serving frontend such as the socket or websocket acceptor.
// ListenAndServe blocks until Stop is called or the listener fails; Stop
// returns only after the listener's in-flight sessions have drained.
type Listener interface {
	ListenAndServe() error
	Stop()
}

type namedListener struct {
	name     string
	listener Listener
}

// Lifecycle owns the listeners of one zone server process.
type Lifecycle struct {
	logger    *zap.Logger
	mu        sync.Mutex
	listeners []namedListener
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named listener. Listeners serve in the order they are
// added and stop in reverse order.
//
// Precondition: name must be non-empty; ln must be non-nil.
func (l *Lifecycle) Add(name string, ln Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, namedListener{name: name, listener: ln})
}

// Run serves every registered listener and blocks until a termination
// signal (SIGINT or SIGTERM), context cancellation, or a listener failure.
// Listeners are then stopped in reverse order, each blocking until its
// sessions drain.
//
// Postcondition: every listener has stopped; the returned error is the
// listener failure that triggered shutdown, or nil on signal or
// cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(l.listeners))
	for _, nl := range l.listeners {
		nl := nl
		go func() {
			l.logger.Info("listener serving",
				zap.String("listener", nl.name),
			)
			if err := nl.listener.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("listener %s: %w", nl.name, err)
				cancel()
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case serveErr = <-errCh:
		l.logger.Error("listener failed, shutting down",
			zap.Error(serveErr),
		)
	case <-ctx.Done():
		// A failing listener queues its error strictly before
		// cancelling, so prefer it over a bare cancellation.
		select {
		case serveErr = <-errCh:
			l.logger.Error("listener failed, shutting down",
				zap.Error(serveErr),
			)
		default:
			l.logger.Info("context cancelled, shutting down")
		}
	}

	l.stopAll()

	l.logger.Info("shutdown complete",
		zap.Duration("uptime", time.Since(start)),
	)
	return serveErr
}

// stopAll stops listeners in reverse registration order and records how
// long each one took to drain its sessions.
func (l *Lifecycle) stopAll() {
	for i := len(l.listeners) - 1; i >= 0; i-- {
		nl := l.listeners[i]
		stopStart := time.Now()
		l.logger.Info("stopping listener",
			zap.String("listener", nl.name),
		)
		nl.listener.Stop()
		l.logger.Info("listener drained",
			zap.String("listener", nl.name),
			zap.Duration("drain", time.Since(stopStart)),
		)
	}
}
