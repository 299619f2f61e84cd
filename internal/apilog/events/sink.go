package events

import (
	"errors"
	"fmt"
)

// Sink is a destination for API events (console, disc, network, stream).
// Emit is called on the API request goroutine, so implementations doing slow
// I/O should queue internally (see AsyncSink).
type Sink interface {
	// Emit delivers one event. A returned error is recorded by the caller and
	// never reaches the API operation that raised the event.
	Emit(event *Event) error

	// Close flushes and releases resources.
	Close() error
}

var (
	// ErrInvalidConfiguration is returned when a registry or sink is constructed with missing collaborators
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrQueueFull is returned by AsyncSink when its queue cannot take another event
	ErrQueueFull = errors.New("sink queue full")
	// ErrSinkClosed is returned when emitting into a closed sink
	ErrSinkClosed = errors.New("sink closed")
)

// SinkDeliveryError records a failed delivery of one event to one sink
type SinkDeliveryError struct {
	Sink  string
	Event string
	Err   error
}

func (e *SinkDeliveryError) Error() string {
	return fmt.Sprintf("sink %s failed to deliver %s: %v", e.Sink, e.Event, e.Err)
}

func (e *SinkDeliveryError) Unwrap() error {
	return e.Err
}

// SinkFunc adapts a function to the Sink interface. Close is a no-op.
type SinkFunc func(event *Event) error

// Emit calls f(event).
func (f SinkFunc) Emit(event *Event) error { return f(event) }

// Close returns nil.
func (f SinkFunc) Close() error { return nil }

// NoopSink is a no-op implementation for testing and disabled logging.
type NoopSink struct{}

// Emit does nothing.
func (n *NoopSink) Emit(event *Event) error { return nil }

// Close returns nil.
func (n *NoopSink) Close() error { return nil }
