package bus

import (
	"context"
	"io"
	"log"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &NullBus{logger: logger}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishChange logs the change but doesn't actually publish it
func (nb *NullBus) PublishChange(ctx context.Context, change Change) error {
	nb.logger.Printf("Would publish %s %s (Redis disabled)", change.Kind, change.Action)
	return nil
}

// WatchChanges never delivers anything; it blocks until ctx is done.
func (nb *NullBus) WatchChanges(ctx context.Context, handler func(ctx context.Context, change Change) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
