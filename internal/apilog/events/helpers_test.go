package events

import (
	"bytes"
	"sync"
	"time"
)

var testTime = time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)

func testRequest() *Request {
	return &Request{
		RequestID:     "r1",
		Method:        "POST",
		Path:          "/users",
		Host:          "api.example.com",
		RemoteAddr:    "10.0.0.1:5000",
		UserAgent:     "curl/8.0",
		ContentLength: 42,
	}
}

func testRequestEvent() *Event {
	desc := NewDescriptor("AddUserRequest", DirectionRequest, "User", "Request", "All")
	return NewRequestEvent(desc, "default", testTime, testRequest())
}

func testResponseEvent(status int) *Event {
	desc := NewDescriptor("AddUserResponse", DirectionResponse, "User", "Response", "All")
	return NewResponseEvent(desc, "default", testTime, testRequest(),
		&Response{StatusCode: status, ContentLength: 17, ContentType: "application/json"},
		1500*time.Millisecond)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// recordingSink stores emitted events and can be told to fail
type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
	closed bool
	block  chan struct{}
}

func (r *recordingSink) Emit(event *Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

func (r *recordingSink) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
