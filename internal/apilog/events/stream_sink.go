package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/common/httputil"
)

const (
	DefaultStreamBuffer    = 64
	DefaultStreamHeartbeat = 15 * time.Second
)

// StreamSubscriber is one server-sent-events client
type StreamSubscriber struct {
	id     string
	tags   []string
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// ID returns the subscriber identifier
func (s *StreamSubscriber) ID() string { return s.id }

// Frames returns the channel of encoded SSE frames
func (s *StreamSubscriber) Frames() <-chan []byte { return s.frames }

// Done is closed when the subscriber is removed or the sink closes
func (s *StreamSubscriber) Done() <-chan struct{} { return s.done }

// matches requires every filter tag to be present on the event
func (s *StreamSubscriber) matches(event *Event) bool {
	for _, tag := range s.tags {
		if !event.HasTag(tag) {
			return false
		}
	}
	return true
}

func (s *StreamSubscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// StreamSink fans events out to server-sent-events subscribers. Emit never
// blocks: a subscriber whose buffer is full misses the event.
type StreamSink struct {
	bufferSize int
	heartbeat  time.Duration
	onDrop     func(subscriberID string)
	onCount    func(subscribers int)
	logger     *zap.Logger
	sequence   atomic.Uint64

	mu          sync.RWMutex
	subscribers map[string]*StreamSubscriber
	closed      bool
}

// NewStreamSink creates an SSE hub. onDrop, if set, is called for every frame
// a slow subscriber misses.
func NewStreamSink(bufferSize int, heartbeat time.Duration, onDrop func(subscriberID string), logger *zap.Logger) *StreamSink {
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}
	if heartbeat <= 0 {
		heartbeat = DefaultStreamHeartbeat
	}

	return &StreamSink{
		bufferSize:  bufferSize,
		heartbeat:   heartbeat,
		onDrop:      onDrop,
		logger:      logger,
		subscribers: make(map[string]*StreamSubscriber),
	}
}

// OnSubscriberCount sets a callback receiving the subscriber count after
// every change. Set it before the sink is shared.
func (s *StreamSink) OnSubscriberCount(fn func(subscribers int)) {
	s.onCount = fn
}

func (s *StreamSink) countChanged() {
	if s.onCount != nil {
		s.onCount(len(s.subscribers))
	}
}

// Subscribe registers a subscriber receiving events that carry all of tags
func (s *StreamSink) Subscribe(tags ...string) (*StreamSubscriber, error) {
	sub := &StreamSubscriber{
		id:     uuid.New().String(),
		tags:   tags,
		frames: make(chan []byte, s.bufferSize),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSinkClosed
	}
	s.subscribers[sub.id] = sub
	s.countChanged()

	s.logger.Debug("Stream subscriber added",
		zap.String("subscriber_id", sub.id),
		zap.Strings("tags", tags),
		zap.Int("subscribers", len(s.subscribers)))
	return sub, nil
}

// Unsubscribe removes a subscriber by ID; unknown IDs are ignored
func (s *StreamSink) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		sub.stop()
		s.countChanged()
		s.logger.Debug("Stream subscriber removed",
			zap.String("subscriber_id", id),
			zap.Int("subscribers", len(s.subscribers)))
	}
}

// SubscriberCount returns the number of connected subscribers
func (s *StreamSink) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Emit encodes the event once and offers the frame to every matching subscriber
func (s *StreamSink) Emit(event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Name, err)
	}
	frame := encodeFrame(s.sequence.Add(1), event.Name, payload)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}

	for _, sub := range s.subscribers {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.frames <- frame:
		default:
			if s.onDrop != nil {
				s.onDrop(sub.id)
			}
		}
	}
	return nil
}

// Close disconnects all subscribers
func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for id, sub := range s.subscribers {
		sub.stop()
		delete(s.subscribers, id)
	}
	s.countChanged()
	return nil
}

// Handler serves the event stream. The optional "tags" query parameter is a
// comma-separated filter, e.g. ?tags=User,Response.
func (s *StreamSink) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsGet() {
			httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}

		sub, err := s.Subscribe(parseTags(string(ctx.QueryArgs().Peek("tags")))...)
		if err != nil {
			httputil.JSONError(ctx, "event stream unavailable", fasthttp.StatusServiceUnavailable)
			return
		}

		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.Response.Header.Set("Connection", "keep-alive")
		ctx.Response.Header.Set("X-Accel-Buffering", "no")

		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			s.stream(w, sub)
		})
	}
}

func (s *StreamSink) stream(w *bufio.Writer, sub *StreamSubscriber) {
	defer s.Unsubscribe(sub.id)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	fmt.Fprintf(w, ": subscribed %s\n\n", sub.id)
	if err := w.Flush(); err != nil {
		return
	}

	for {
		select {
		case frame := <-sub.frames:
			if _, err := w.Write(frame); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return
			}
			// A failed flush means the client went away
			if err := w.Flush(); err != nil {
				return
			}
		case <-sub.done:
			return
		}
	}
}

func encodeFrame(id uint64, name string, payload []byte) []byte {
	var b strings.Builder
	b.Grow(len(payload) + len(name) + 32)
	fmt.Fprintf(&b, "id: %d\nevent: %s\ndata: ", id, name)
	b.Write(payload)
	b.WriteString("\n\n")
	return []byte(b.String())
}

func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
