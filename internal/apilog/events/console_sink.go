package events

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleSink writes one structured zap line per event.
// Requests and 2xx/3xx responses log at Info, 4xx at Warn, 5xx at Error.
type ConsoleSink struct {
	logger *zap.Logger
}

// NewConsoleSink creates a console sink writing through logger
func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

// Emit logs the event. zap reports its own write failures to its error output.
func (c *ConsoleSink) Emit(event *Event) error {
	level := zapcore.InfoLevel
	switch status := event.StatusCode(); {
	case status >= 500:
		level = zapcore.ErrorLevel
	case status >= 400:
		level = zapcore.WarnLevel
	}

	if ce := c.logger.Check(level, event.Name); ce != nil {
		ce.Write(eventFields(event)...)
	}
	return nil
}

// Close flushes buffered output. Sync errors on terminals are expected and ignored.
func (c *ConsoleSink) Close() error {
	_ = c.logger.Sync()
	return nil
}

func eventFields(event *Event) []zap.Field {
	fields := make([]zap.Field, 0, 10)
	fields = append(fields,
		zap.String("context", event.Context),
		zap.Stringer("direction", event.Direction),
		zap.Strings("tags", event.Tags),
		zap.Time("timestamp", event.Timestamp),
	)

	if req := event.Request; req != nil {
		fields = append(fields,
			zap.String("request_id", req.RequestID),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("remote_addr", req.RemoteAddr),
		)
	}

	if resp := event.Response; resp != nil {
		fields = append(fields,
			zap.Int("status_code", resp.StatusCode),
			zap.Int("response_size", resp.ContentLength),
			zap.Duration("duration", event.Duration),
		)
	}

	return fields
}
