package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/pkg/pattern"
)

// Type aliases so callers only import config
type (
	GatewayConfig      = configtypes.GatewayConfig
	LogConfig          = configtypes.LogConfig
	EventLoggingConfig = configtypes.EventLoggingConfig
)

// Defaults applied by applyDefaults
const (
	DefaultListen        = ":8080"
	DefaultServerTimeout = 30 * time.Second
	DefaultMetricsListen = ":9090"
	DefaultMetricsPath   = "/metrics"
	DefaultNamespace     = "apilog"
	DefaultEventPath     = "logs"
	DefaultEventContext  = configtypes.DefaultEventContext
	DefaultStreamPath    = "/events"
	DefaultStreamBuffer  = 64
	DefaultRedisStream   = "apilog:events"
	DefaultRedisMaxLen   = 100000
	DefaultNetworkQueue  = 1024
	DefaultErrorsFile    = "{context}.errors.log"
)

// Manager handles configuration loading
type Manager struct {
	config     *GatewayConfig
	configPath string
	logger     *zap.Logger
}

func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	cm := &Manager{
		configPath: configPath,
		logger:     logger,
	}

	if err := cm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// LoadConfig reads, defaults and validates the configuration file
func (cm *Manager) LoadConfig() error {
	cfg, err := Load(cm.configPath)
	if err != nil {
		return err
	}

	cm.config = cfg
	cm.emitConfigWarnings()

	cm.logger.Info("Configuration loaded",
		zap.String("path", cm.configPath),
		zap.String("event_context", cfg.EventLogging.Context),
		zap.String("event_path", cfg.EventLogging.Path))

	return nil
}

// GetConfig returns the current configuration
func (cm *Manager) GetConfig() *GatewayConfig {
	return cm.config
}

// SetConfig sets the configuration (for testing)
func (cm *Manager) SetConfig(cfg *GatewayConfig) {
	cm.config = cfg
}

// Load reads a configuration file, applies defaults and validates it
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg GatewayConfig
	if err := UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero values with defaults
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = configtypes.Duration(DefaultServerTimeout)
	}

	// If both outputs are disabled (zero values), enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}

	el := &cfg.EventLogging
	if el.Path == "" {
		el.Path = DefaultEventPath
	}
	if el.Context == "" {
		el.Context = DefaultEventContext
	}
	if el.Errors.FileName == "" {
		el.Errors.FileName = DefaultErrorsFile
	}
	if el.Stream.Path == "" {
		el.Stream.Path = DefaultStreamPath
	}
	if el.Stream.BufferSize == 0 {
		el.Stream.BufferSize = DefaultStreamBuffer
	}
	if el.Network.Stream == "" {
		el.Network.Stream = DefaultRedisStream
	}
	if el.Network.MaxLen == 0 {
		el.Network.MaxLen = DefaultRedisMaxLen
	}
	if el.Network.QueueSize == 0 {
		el.Network.QueueSize = DefaultNetworkQueue
	}
}

// Validate checks semantic constraints and reports every violation found
func Validate(cfg *GatewayConfig) error {
	var errs []error

	if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("server.listen: %w", err))
	}
	if cfg.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if cfg.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		errs = append(errs, errors.New("log.file.path must be specified when file logging is enabled"))
	}
	for name, level := range map[string]string{
		"log.level":         cfg.Log.Level,
		"log.console.level": cfg.Log.Console.Level,
		"log.file.level":    cfg.Log.File.Level,
	} {
		if level != "" && !validLevel(level) {
			errs = append(errs, fmt.Errorf("%s: unknown level %q", name, level))
		}
	}

	el := cfg.EventLogging
	if strings.ContainsAny(el.FileName, `/\`) {
		errs = append(errs, fmt.Errorf("event_logging.file_name %q must not contain path separators", el.FileName))
	}
	if strings.ContainsAny(el.Errors.FileName, `/\`) {
		errs = append(errs, fmt.Errorf("event_logging.errors.file_name %q must not contain path separators", el.Errors.FileName))
	}
	if _, err := pattern.CompileAll(el.Exclude); err != nil {
		errs = append(errs, fmt.Errorf("event_logging.exclude: %w", err))
	}
	if !strings.HasPrefix(el.Stream.Path, "/") {
		errs = append(errs, fmt.Errorf("event_logging.stream.path %q must start with /", el.Stream.Path))
	}
	if el.Stream.Enabled && !cfg.Metrics.Enabled {
		errs = append(errs, errors.New("event_logging.stream requires metrics.enabled (served by the admin server)"))
	}
	if el.Stream.Enabled && el.Stream.Path == cfg.Metrics.Path {
		errs = append(errs, fmt.Errorf("event_logging.stream.path conflicts with metrics.path %q", cfg.Metrics.Path))
	}
	if el.Network.Enabled && cfg.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when event_logging.network is enabled"))
	}
	if el.Network.MaxLen < 0 {
		errs = append(errs, errors.New("event_logging.network.max_len must not be negative"))
	}
	if cfg.Metrics.Enabled && configtypes.SamePort(cfg.Metrics.Listen, cfg.Server.Listen) {
		errs = append(errs, fmt.Errorf("metrics.listen must use a different port than server.listen (%s)", cfg.Server.Listen))
	}

	return errors.Join(errs...)
}

func validLevel(level string) bool {
	switch level {
	case configtypes.LogLevelDebug, configtypes.LogLevelInfo, configtypes.LogLevelWarn, configtypes.LogLevelError:
		return true
	}
	return false
}

// emitConfigWarnings emits runtime warnings for configuration (non-validation concerns)
func (cm *Manager) emitConfigWarnings() {
	el := cm.config.EventLogging
	if !configtypes.Enabled(el.Console) && !configtypes.Enabled(el.Disc) && !el.Stream.Enabled && !el.Network.Enabled {
		cm.logger.Warn("event_logging: every sink is disabled, API events will not be recorded")
	}
	if el.Errors.Enabled && !configtypes.Enabled(el.Disc) {
		cm.logger.Warn("event_logging.errors is enabled but disc logging is off; error log is still written")
	}
}
