package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/api"
	"github.com/edgecomet/apilog/internal/apilog/metrics"
	"github.com/edgecomet/apilog/internal/apilog/registry"
	"github.com/edgecomet/apilog/internal/common/adminserver"
	"github.com/edgecomet/apilog/internal/common/config"
	"github.com/edgecomet/apilog/internal/common/logger"
)

func main() {
	configPath := flag.String("c", "configs/apilog-gateway.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	if *testMode {
		os.Exit(runConfigTest(*configPath))
	}

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting API log gateway", zap.String("config_path", *configPath))

	configManager, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to create config manager", zap.Error(err))
	}
	cfg := configManager.GetConfig()

	dynamicLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	gwLogger := dynamicLogger.Logger

	metricsCollector := metrics.NewMetrics(cfg.Metrics.Namespace, gwLogger)
	apiObj := api.New(gwLogger)

	eventSinks, err := buildEventLog(cfg, metricsCollector, gwLogger)
	if err != nil {
		gwLogger.Fatal("Failed to build event sinks", zap.Error(err))
	}
	defer eventSinks.Close()

	eventRegistry, err := registry.New(apiObj, eventSinks.config, eventSinks.options, metricsCollector, gwLogger)
	if err != nil {
		gwLogger.Fatal("Failed to create event log registry", zap.Error(err))
	}

	var adminSrv *adminserver.Server
	if cfg.Metrics.Enabled {
		adminCfg := adminserver.Config{
			Listen:      cfg.Metrics.Listen,
			MetricsPath: cfg.Metrics.Path,
			Metrics:     metricsCollector,
		}
		if eventSinks.stream != nil {
			adminCfg.StreamPath = cfg.EventLogging.Stream.Path
			adminCfg.StreamHandler = eventSinks.stream.Handler()
		}
		adminSrv, err = adminserver.Start(adminCfg, gwLogger)
		if err != nil {
			gwLogger.Fatal("Failed to start admin server", zap.Error(err))
		}
	} else {
		gwLogger.Info("Metrics collection disabled")
	}

	control := newServerControl()
	apiObj.SetHandler(api.RestartHTTPServer, control.restartHandler)
	apiObj.SetHandler(api.StopHTTPServer, control.stopHandler)

	serverErrors := make(chan error, 1)
	timeout := cfg.Server.Timeout.ToDuration()

	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(apiObj.Handler(), timeout),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  gwLogger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	// Wait briefly for the server to start and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		gwLogger.Fatal("Server failed to start", zap.Error(err))
	default:
	}

	gwLogger.Info("API log gateway started",
		zap.String("http_addr", cfg.Server.Listen),
		zap.Int("events", len(eventRegistry.Descriptors())))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	running := true
	for running {
		select {
		case <-quit:
			gwLogger.Info("Shutting down API log gateway...")
			running = false
		case <-control.stop:
			gwLogger.Info("Stop requested through the API, shutting down...")
			running = false
		case err := <-serverErrors:
			gwLogger.Error("Server failed, initiating shutdown", zap.Error(err))
			running = false
		case <-control.restart:
			gwLogger.Info("Restart requested through the API")
			restartCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = httpLifecycle.Shutdown(restartCtx)
			cancel()

			httpLifecycle.server = newFastHTTPServer(apiObj.Handler(), timeout)
			httpLifecycle.StartWithErrorChan(serverErrors)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = httpLifecycle.Shutdown(shutdownCtx)
	gwLogger.Info("HTTP server shutdown complete")

	// Closing the registry also disconnects stream subscribers, which lets
	// the admin server finish its open connections
	if err := eventRegistry.Close(); err != nil {
		gwLogger.Error("Failed to close event log registry", zap.Error(err))
	}
	gwLogger.Info("Event log registry shutdown complete")

	if adminSrv != nil {
		if err := adminSrv.Shutdown(); err != nil {
			gwLogger.Error("Admin server shutdown error", zap.Error(err))
		}
	}

	gwLogger.Info("API log gateway stopped")
}

const serverName = "APILogGateway/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server  *fasthttp.Server
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	server := s.server
	go func() {
		if err := server.ListenAndServe(s.address); err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				select {
				case errChan <- fmt.Errorf("%s server failed: %w", s.name, err):
				default:
				}
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

// runConfigTest loads and validates the configuration file
func runConfigTest(configPath string) int {
	if _, err := config.Load(configPath); err != nil {
		fmt.Println("Configuration validation FAILED:")
		fmt.Printf("- %v\n", err)
		return 1
	}

	fmt.Printf("configuration file %s syntax is ok\n", configPath)
	fmt.Println("configuration test is successful")
	return 0
}
