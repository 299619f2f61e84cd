package testutil

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgecomet/apilog/internal/common/config"
	"github.com/edgecomet/apilog/internal/common/configtypes"
)

const (
	EventContext = "acceptance"
	RedisStream  = "apilog:acceptance"
)

// ConfigBuilder builds the gateway configuration for one test run
type ConfigBuilder struct {
	redisAddr  string
	logDir     string
	serverPort int
	adminPort  int
}

// NewConfigBuilder picks free ports for the API and admin listeners
func NewConfigBuilder(redisAddr, logDir string) (*ConfigBuilder, error) {
	serverPort, err := FreePort()
	if err != nil {
		return nil, err
	}
	adminPort, err := FreePort()
	if err != nil {
		return nil, err
	}

	return &ConfigBuilder{
		redisAddr:  redisAddr,
		logDir:     logDir,
		serverPort: serverPort,
		adminPort:  adminPort,
	}, nil
}

// APIBaseURL is the users API root
func (b *ConfigBuilder) APIBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", b.serverPort)
}

// AdminBaseURL serves metrics and the event stream
func (b *ConfigBuilder) AdminBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", b.adminPort)
}

// LogDir is where disc event logs are written
func (b *ConfigBuilder) LogDir() string {
	return b.logDir
}

// Build returns a config with every sink enabled
func (b *ConfigBuilder) Build() *config.GatewayConfig {
	return &config.GatewayConfig{
		Server: configtypes.ServerConfig{
			Listen:  fmt.Sprintf("127.0.0.1:%d", b.serverPort),
			Timeout: configtypes.Duration(10 * time.Second),
		},
		Redis: configtypes.RedisConfig{
			Addr: b.redisAddr,
		},
		Log: configtypes.LogConfig{
			Level: configtypes.LogLevelDebug,
			Console: configtypes.ConsoleLogConfig{
				Enabled: true,
				Format:  configtypes.LogFormatJSON,
			},
		},
		Metrics: configtypes.MetricsConfig{
			Enabled: true,
			Listen:  fmt.Sprintf("127.0.0.1:%d", b.adminPort),
		},
		EventLogging: configtypes.EventLoggingConfig{
			Path:    b.logDir,
			Context: EventContext,
			Errors: configtypes.ErrorLoggingConfig{
				Enabled: true,
			},
			Stream: configtypes.StreamLoggingConfig{
				Enabled:   true,
				Heartbeat: configtypes.Duration(time.Second),
			},
			Network: configtypes.NetworkLogConfig{
				Enabled: true,
				Stream:  RedisStream,
				MaxLen:  1000,
			},
		},
	}
}

// WriteConfig writes the gateway config into dir and returns its path
func (b *ConfigBuilder) WriteConfig(dir string) (string, error) {
	data, err := yaml.Marshal(b.Build())
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway config: %w", err)
	}

	path := filepath.Join(dir, "apilog-gateway.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write gateway config: %w", err)
	}
	return path, nil
}

// FreePort asks the kernel for an unused TCP port
func FreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
