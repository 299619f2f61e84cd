package adminserver

import (
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/common/httputil"
)

// MetricsHandler interface for metrics collectors
type MetricsHandler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Config describes what the admin server exposes. Empty paths are not served.
type Config struct {
	Listen        string
	MetricsPath   string
	Metrics       MetricsHandler
	StreamPath    string
	StreamHandler fasthttp.RequestHandler
}

// Server is the admin listener for metrics and the live event stream
type Server struct {
	server   *fasthttp.Server
	listener net.Listener
	logger   *zap.Logger
}

// Start binds cfg.Listen and serves in the background. Bind errors are
// returned directly.
func Start(cfg Config, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	s := &Server{
		server: &fasthttp.Server{
			Handler:     NewHandler(cfg, logger),
			Name:        "APILog-Admin",
			ReadTimeout: 10 * time.Second,
			// Event stream responses stay open, so no write deadline
			IdleTimeout:        60 * time.Second,
			MaxRequestBodySize: 1 * 1024,
			TCPKeepalive:       true,
			TCPKeepalivePeriod: 30 * time.Second,
			MaxConnsPerIP:      100,
			Concurrency:        256,
		},
		listener: listener,
		logger:   logger,
	}

	go func() {
		logger.Info("Admin server listening",
			zap.String("listen", listener.Addr().String()),
			zap.String("metrics_path", cfg.MetricsPath),
			zap.String("stream_path", cfg.StreamPath))

		if err := s.server.Serve(listener); err != nil {
			logger.Error("Admin server stopped", zap.Error(err))
		}
	}()

	return s, nil
}

// Addr returns the bound address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for open ones
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down admin server")
	return s.server.Shutdown()
}

// NewHandler routes exact paths to the metrics and stream handlers
func NewHandler(cfg Config, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())

		switch {
		case cfg.Metrics != nil && cfg.MetricsPath != "" && path == cfg.MetricsPath:
			cfg.Metrics.ServeHTTP(ctx)
		case cfg.StreamHandler != nil && cfg.StreamPath != "" && path == cfg.StreamPath:
			logger.Debug("Event stream client connected",
				zap.String("remote_addr", ctx.RemoteAddr().String()),
				zap.String("tags", string(ctx.QueryArgs().Peek("tags"))))
			cfg.StreamHandler(ctx)
		default:
			httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
		}
	}
}
