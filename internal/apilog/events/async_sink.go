package events

import (
	"sync"

	"go.uber.org/zap"
)

// AsyncSink puts a bounded queue in front of a slow sink. Emit never blocks:
// when the queue is full the event is rejected with ErrQueueFull. A single
// worker goroutine drains the queue into the wrapped sink in FIFO order.
type AsyncSink struct {
	inner   Sink
	queue   chan *Event
	onError func(event *Event, err error)
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the worker. onError, if set, is called from the worker
// for every failed delivery to inner.
func NewAsyncSink(inner Sink, queueSize int, onError func(event *Event, err error), logger *zap.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = 1
	}

	s := &AsyncSink{
		inner:   inner,
		queue:   make(chan *Event, queueSize),
		onError: onError,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)

	for event := range s.queue {
		if err := s.inner.Emit(event); err != nil {
			s.logger.Warn("Async sink delivery failed",
				zap.String("event", event.Name),
				zap.String("request_id", event.RequestID()),
				zap.Error(err))
			if s.onError != nil {
				s.onError(event, err)
			}
		}
	}
}

// Emit enqueues the event without waiting for delivery
func (s *AsyncSink) Emit(event *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued events not yet handed to the wrapped sink
func (s *AsyncSink) Pending() int {
	return len(s.queue)
}

// Close stops accepting events, drains the queue, then closes the wrapped sink
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.inner.Close()
}
