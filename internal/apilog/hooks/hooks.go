// Package hooks provides the observer primitives API operations raise when a
// request arrives and when its response is sent.
package hooks

import (
	"sync"
	"time"

	"github.com/edgecomet/apilog/internal/apilog/events"
)

// RequestHandler receives a request occurrence
type RequestHandler func(timestamp time.Time, req *events.Request)

// ResponseHandler receives a response occurrence
type ResponseHandler func(timestamp time.Time, req *events.Request, resp *events.Response, duration time.Duration)

// Subscription detaches one handler. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

// list keeps handlers in subscription order under its own lock
type list[H any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []entry[H]
}

type entry[H any] struct {
	id      uint64
	handler H
}

func (l *list[H]) add(handler H) Subscription {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, entry[H]{id: id, handler: handler})
	l.mu.Unlock()

	return &subscription{remove: func() { l.remove(id) }}
}

func (l *list[H]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.handlers {
		if e.id == id {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return
		}
	}
}

// snapshot copies the handlers so raising never holds the lock
func (l *list[H]) snapshot() []H {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]H, len(l.handlers))
	for i, e := range l.handlers {
		out[i] = e.handler
	}
	return out
}

func (l *list[H]) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

// RequestHook is raised when an API request arrives
type RequestHook struct {
	name     string
	handlers list[RequestHandler]
}

// NewRequestHook creates a named hook, e.g. "OnAddUserHTTPRequest"
func NewRequestHook(name string) *RequestHook {
	return &RequestHook{name: name}
}

func (h *RequestHook) Name() string { return h.name }

// Subscribe appends handler; handlers run in subscription order
func (h *RequestHook) Subscribe(handler RequestHandler) Subscription {
	return h.handlers.add(handler)
}

// Raise calls every handler synchronously on the caller's goroutine
func (h *RequestHook) Raise(timestamp time.Time, req *events.Request) {
	for _, handler := range h.handlers.snapshot() {
		handler(timestamp, req)
	}
}

// Count returns the number of attached handlers
func (h *RequestHook) Count() int { return h.handlers.count() }

// ResponseHook is raised after an API response has been produced
type ResponseHook struct {
	name     string
	handlers list[ResponseHandler]
}

// NewResponseHook creates a named hook, e.g. "OnAddUserHTTPResponse"
func NewResponseHook(name string) *ResponseHook {
	return &ResponseHook{name: name}
}

func (h *ResponseHook) Name() string { return h.name }

// Subscribe appends handler; handlers run in subscription order
func (h *ResponseHook) Subscribe(handler ResponseHandler) Subscription {
	return h.handlers.add(handler)
}

// Raise calls every handler synchronously on the caller's goroutine
func (h *ResponseHook) Raise(timestamp time.Time, req *events.Request, resp *events.Response, duration time.Duration) {
	for _, handler := range h.handlers.snapshot() {
		handler(timestamp, req, resp, duration)
	}
}

// Count returns the number of attached handlers
func (h *ResponseHook) Count() int { return h.handlers.count() }
