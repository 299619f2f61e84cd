package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/events"
	"github.com/edgecomet/apilog/internal/apilog/metrics"
	"github.com/edgecomet/apilog/internal/apilog/registry"
	"github.com/edgecomet/apilog/internal/common/config"
	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/internal/common/logger"
	"github.com/edgecomet/apilog/internal/common/redis"
)

// eventLog is everything needed to construct the registry from configuration
type eventLog struct {
	config  registry.Config
	options registry.Options
	stream  *events.StreamSink
	redis   *redis.Client
}

// Close releases resources the registry does not own
func (e *eventLog) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}

// buildEventLog turns event_logging settings into registry config and sinks.
// With console and disc enabled and nothing else, the registry defaults are used.
func buildEventLog(cfg *config.GatewayConfig, m *metrics.Metrics, log *zap.Logger) (*eventLog, error) {
	el := cfg.EventLogging

	result := &eventLog{
		config: registry.Config{
			Path:          el.Path,
			Context:       el.Context,
			Template:      el.Template,
			Rotation:      el.Rotation,
			ConsoleLogger: logger.NewEventConsoleLogger(cfg.Log.Console.Format),
		},
	}
	result.options.Exclude = el.Exclude
	if el.FileName != "" {
		result.config.FileNamer = events.PatternFileNamer(el.FileName)
	}

	consoleOn := configtypes.Enabled(el.Console)
	discOn := configtypes.Enabled(el.Disc)

	if el.Errors.Enabled {
		errorsSink, err := events.NewFileSink(events.FileSinkConfig{
			Dir:      el.Path,
			Context:  el.Context,
			Template: el.Template,
			Namer:    events.PatternFileNamer(el.Errors.FileName),
			Rotation: el.Rotation,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create error log: %w", err)
		}
		result.options.Errors.Disc = errorsSink
	}

	if consoleOn && discOn && !el.Stream.Enabled && !el.Network.Enabled {
		return result, nil
	}

	var set registry.SinkSet
	result.options.NoDefaults = true

	if consoleOn {
		set.Console = events.NewConsoleSink(result.config.ConsoleLogger)
	}

	if discOn {
		disc, err := events.NewFileSink(events.FileSinkConfig{
			Dir:      el.Path,
			Context:  el.Context,
			Template: el.Template,
			Namer:    result.config.FileNamer,
			Rotation: el.Rotation,
		}, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create disc sink: %w", err), closeSinks(result.options.Errors))
		}
		set.Disc = disc
	}

	if el.Network.Enabled {
		client, err := redis.NewClient(&cfg.Redis, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create network sink: %w", err), closeSinks(set, result.options.Errors))
		}
		network, err := events.NewRedisStreamSink(client, el.Network.Stream, el.Network.MaxLen)
		if err != nil {
			_ = client.Close()
			return nil, errors.Join(err, closeSinks(set, result.options.Errors))
		}
		result.redis = client
		set.Network = events.NewAsyncSink(network, el.Network.QueueSize, func(*events.Event, error) {
			m.RecordAsyncFailure(registry.SinkNetwork)
		}, log)

		log.Info("Network event sink enabled",
			zap.String("redis", cfg.Redis.Addr),
			zap.String("stream", el.Network.Stream),
			zap.Int64("max_len", el.Network.MaxLen))
	}

	if el.Stream.Enabled {
		result.stream = events.NewStreamSink(el.Stream.BufferSize, el.Stream.Heartbeat.ToDuration(), func(string) {
			m.RecordStreamDrop()
		}, log)
		result.stream.OnSubscriberCount(m.SetStreamSubscribers)
		set.Stream = result.stream
	}

	result.options.Requests = set
	result.options.Responses = set
	return result, nil
}

func closeSinks(sets ...registry.SinkSet) error {
	var errs []error
	for _, set := range sets {
		for _, s := range []events.Sink{set.Console, set.Disc, set.Network, set.Stream} {
			if s != nil {
				errs = append(errs, s.Close())
			}
		}
	}
	return errors.Join(errs...)
}
