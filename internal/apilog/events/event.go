package events

import (
	"fmt"
	"strings"
	"time"
)

// Direction tells whether an event fires when a request arrives or when its response is sent
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "request":
		*d = DirectionRequest
	case "response":
		*d = DirectionResponse
	default:
		return fmt.Errorf("unknown direction %q", string(text))
	}
	return nil
}

// Descriptor identifies a loggable occurrence by name and searchable tags.
// Descriptors are immutable once created.
type Descriptor struct {
	name      string
	tags      []string
	direction Direction
}

// NewDescriptor creates a descriptor. Tags are copied.
func NewDescriptor(name string, direction Direction, tags ...string) Descriptor {
	return Descriptor{
		name:      name,
		tags:      append([]string(nil), tags...),
		direction: direction,
	}
}

func (d Descriptor) Name() string         { return d.name }
func (d Descriptor) Direction() Direction { return d.direction }

// Tags returns a copy of the descriptor tags in registration order
func (d Descriptor) Tags() []string {
	return append([]string(nil), d.tags...)
}

// HasTag reports whether the descriptor carries tag (case-insensitive)
func (d Descriptor) HasTag(tag string) bool {
	return hasTag(d.tags, tag)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Request is the request context captured when an API request arrives
type Request struct {
	RequestID     string `json:"request_id"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	Host          string `json:"host,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	ContentLength int    `json:"content_length"`
}

// Response is the response context captured when an API response is sent
type Response struct {
	StatusCode    int    `json:"status_code"`
	ContentLength int    `json:"content_length"`
	ContentType   string `json:"content_type,omitempty"`
}

// Event is a single occurrence delivered to sinks. Sinks must treat it as read-only:
// the same value is handed to every sink bound to the descriptor.
type Event struct {
	Name      string        `json:"event"`
	Tags      []string      `json:"tags"`
	Direction Direction     `json:"direction"`
	Context   string        `json:"context,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Request   *Request      `json:"request,omitempty"`
	Response  *Response     `json:"response,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// NewRequestEvent builds the occurrence for a request-direction descriptor
func NewRequestEvent(desc Descriptor, logContext string, timestamp time.Time, req *Request) *Event {
	return &Event{
		Name:      desc.name,
		Tags:      desc.Tags(),
		Direction: desc.direction,
		Context:   logContext,
		Timestamp: timestamp,
		Request:   req,
	}
}

// NewResponseEvent builds the occurrence for a response-direction descriptor
func NewResponseEvent(desc Descriptor, logContext string, timestamp time.Time, req *Request, resp *Response, duration time.Duration) *Event {
	event := NewRequestEvent(desc, logContext, timestamp, req)
	event.Response = resp
	event.Duration = duration
	return event
}

// RequestID returns the request ID or "" when no request context is attached
func (e *Event) RequestID() string {
	if e.Request == nil {
		return ""
	}
	return e.Request.RequestID
}

// StatusCode returns the response status code or 0 for request events
func (e *Event) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// IsError reports whether the event is a response with a 4xx or 5xx status
func (e *Event) IsError() bool {
	return e.StatusCode() >= 400
}

// HasTag reports whether the event carries tag (case-insensitive)
func (e *Event) HasTag(tag string) bool {
	return hasTag(e.Tags, tag)
}
