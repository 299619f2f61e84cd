package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultRedisWriteTimeout = 2 * time.Second

// StreamAdder appends an entry to a capped Redis stream
type StreamAdder interface {
	XAdd(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error)
}

// RedisStreamSink forwards events to a Redis stream. Each entry carries a few
// flat fields for XRANGE filtering plus the full JSON payload.
// Emit performs a network round trip, so wrap it in an AsyncSink.
type RedisStreamSink struct {
	client  StreamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisStreamSink creates a sink appending to stream, trimmed to roughly maxLen entries
func NewRedisStreamSink(client StreamAdder, stream string, maxLen int64) (*RedisStreamSink, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis stream sink requires a client", ErrInvalidConfiguration)
	}
	if stream == "" {
		return nil, fmt.Errorf("%w: redis stream sink requires a stream name", ErrInvalidConfiguration)
	}

	return &RedisStreamSink{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: defaultRedisWriteTimeout,
	}, nil
}

// Emit appends the event to the stream
func (r *RedisStreamSink) Emit(event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	_, err = r.client.XAdd(ctx, r.stream, r.maxLen, map[string]interface{}{
		"event":       event.Name,
		"direction":   event.Direction.String(),
		"context":     event.Context,
		"tags":        strings.Join(event.Tags, ","),
		"request_id":  event.RequestID(),
		"status_code": strconv.Itoa(event.StatusCode()),
		"payload":     string(payload),
	})
	return err
}

// Close does nothing; the Redis client is owned by the caller
func (r *RedisStreamSink) Close() error {
	return nil
}
