package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/apilog/internal/common/configtypes"
)

// DynamicLogger wraps zap.Logger with ability to switch levels at runtime
type DynamicLogger struct {
	*zap.Logger
	consoleLevel *zap.AtomicLevel
	fileLevel    *zap.AtomicLevel
	config       configtypes.LogConfig
}

// SetLevel overrides the level of every enabled output
func (dl *DynamicLogger) SetLevel(level string) {
	parsed := parseLogLevel(level)
	if dl.consoleLevel != nil {
		dl.consoleLevel.SetLevel(parsed)
	}
	if dl.fileLevel != nil {
		dl.fileLevel.SetLevel(parsed)
	}
}

// RestoreConfiguredLevels resets outputs to the levels from the configuration
func (dl *DynamicLogger) RestoreConfiguredLevels() {
	globalLevel := parseLogLevel(dl.config.Level)
	if dl.consoleLevel != nil {
		dl.consoleLevel.SetLevel(resolveLogLevel(dl.config.Console.Level, globalLevel))
	}
	if dl.fileLevel != nil {
		dl.fileLevel.SetLevel(resolveLogLevel(dl.config.File.Level, globalLevel))
	}
}

// NewLogger creates a zap logger teeing console and file outputs as configured
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	return newLogger(config, os.Stdout)
}

func newLogger(config configtypes.LogConfig, console io.Writer) (*DynamicLogger, error) {
	globalLevel := parseLogLevel(config.Level)

	var cores []zapcore.Core
	var consoleLevel *zap.AtomicLevel
	var fileLevel *zap.AtomicLevel

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.Console.Level, globalLevel))
		consoleLevel = &level
		cores = append(cores, zapcore.NewCore(CreateEncoder(config.Console.Format), zapcore.Lock(zapcore.AddSync(console)), consoleLevel))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}

		level := zap.NewAtomicLevelAt(resolveLogLevel(config.File.Level, globalLevel))
		fileLevel = &level
		fileWriter := zapcore.AddSync(NewRotatingWriter(config.File.Path, config.File.Rotation))
		cores = append(cores, zapcore.NewCore(CreateEncoder(config.File.Format), fileWriter, fileLevel))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return &DynamicLogger{
		Logger:       zap.New(core),
		consoleLevel: consoleLevel,
		fileLevel:    fileLevel,
		config:       config,
	}, nil
}

// NewDefaultLogger creates a console logger for startup, before config is read
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

// NewEventConsoleLogger builds the stdout logger used by the console event sink.
// It has no caller or stacktrace annotations: each line is one API event.
func NewEventConsoleLogger(format string) *zap.Logger {
	return NewEventWriterLogger(format, os.Stdout)
}

// NewEventWriterLogger is NewEventConsoleLogger writing to w
func NewEventWriterLogger(format string, w io.Writer) *zap.Logger {
	core := zapcore.NewCore(CreateEncoder(format), zapcore.Lock(zapcore.AddSync(w)), zap.DebugLevel)
	return zap.New(core)
}

// NewRotatingWriter returns a lumberjack writer; zero rotation fields use lumberjack defaults
func NewRotatingWriter(path string, rotation configtypes.RotationConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	}
}

// CreateEncoder creates a zapcore.Encoder based on format
func CreateEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// Plain text without color codes (for files)
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zapcore.NewConsoleEncoder(encoderConfig)
}

// parseLogLevel converts string level to zapcore.Level
func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLogLevel returns outputLevel when set, otherwise globalLevel
func resolveLogLevel(outputLevel string, globalLevel zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return globalLevel
}
