package configtypes

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// GatewayConfig represents the apilog gateway main configuration
type GatewayConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	EventLogging EventLoggingConfig `yaml:"event_logging"`
}

type ServerConfig struct {
	Listen  string   `yaml:"listen"`
	Timeout Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

// DefaultEventContext is the logging context stamped on events when none is configured
const DefaultEventContext = "default"

// RotationConfig sets lumberjack limits. For the event log, zero selects the
// default and a negative max_age or max_backups keeps old files forever.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// MetricsConfig configures the admin server. The event stream is served on
// the same listener when event_logging.stream is enabled.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// EventLoggingConfig configures which sinks receive API events
type EventLoggingConfig struct {
	// Path is the directory for disc event logs
	Path string `yaml:"path"`
	// Context names this logging instance; it prefixes file names and is
	// attached to every event.
	Context  string         `yaml:"context"`
	Template string         `yaml:"template"`
	FileName string         `yaml:"file_name"` // pattern with {context} and {event}
	Rotation RotationConfig `yaml:"rotation"`
	// Exclude lists event name patterns kept out of every sink
	Exclude []string `yaml:"exclude,omitempty"`

	Console *bool               `yaml:"console,omitempty"` // nil = enabled
	Disc    *bool               `yaml:"disc,omitempty"`    // nil = enabled
	Errors  ErrorLoggingConfig  `yaml:"errors"`
	Stream  StreamLoggingConfig `yaml:"stream"`
	Network NetworkLogConfig    `yaml:"network"`
}

// ErrorLoggingConfig configures the extra error log for failed responses
type ErrorLoggingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FileName string `yaml:"file_name"`
}

// StreamLoggingConfig configures the server-sent events sink
type StreamLoggingConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Path       string   `yaml:"path"`
	BufferSize int      `yaml:"buffer_size"`
	Heartbeat  Duration `yaml:"heartbeat"`
}

// NetworkLogConfig configures the Redis stream sink
type NetworkLogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Stream    string `yaml:"stream"`
	MaxLen    int64  `yaml:"max_len"`
	QueueSize int    `yaml:"queue_size"`
}

// Enabled reports whether an optional toggle is on; nil means on.
func Enabled(b *bool) bool {
	return b == nil || *b
}
