package bus

import (
	"context"
	"io"
	"log"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// Change actions
const (
	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// Change announces that a stored collection was replaced or removed
type Change struct {
	Kind      model.Kind `json:"kind"`
	Action    string     `json:"action"`
	Count     int        `json:"count"`
	Source    string     `json:"source,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Bus carries snapshot change notifications between secboard processes
type Bus interface {
	// PublishChange announces a snapshot change
	PublishChange(ctx context.Context, change Change) error

	// WatchChanges calls handler for every change published after the call,
	// until ctx is done.
	WatchChanges(ctx context.Context, handler func(ctx context.Context, change Change) error) error

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or invalid, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err != nil {
		// Fall back to null bus if Redis fails
		logger.Printf("Redis bus disabled: %v", err)
		return NewNullBus(logger)
	}
	return redisBus
}
