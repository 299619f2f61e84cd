package events

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/internal/common/logger"
)

const (
	DefaultMaxSize    = 100 // MB
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10  // files
)

// effectiveRotation fills unset limits with the defaults. A negative MaxAge or
// MaxBackups keeps old files forever, which lumberjack spells as 0.
func effectiveRotation(rotation configtypes.RotationConfig) configtypes.RotationConfig {
	if rotation.MaxSize <= 0 {
		rotation.MaxSize = DefaultMaxSize
	}
	switch {
	case rotation.MaxAge == 0:
		rotation.MaxAge = DefaultMaxAge
	case rotation.MaxAge < 0:
		rotation.MaxAge = 0
	}
	switch {
	case rotation.MaxBackups == 0:
		rotation.MaxBackups = DefaultMaxBackups
	case rotation.MaxBackups < 0:
		rotation.MaxBackups = 0
	}
	return rotation
}

// FileNamer maps a logging context and event name to a log file name
type FileNamer func(logContext, eventName string) string

// DefaultFileNamer writes every event of a context to "<context>.log"
func DefaultFileNamer(logContext, _ string) string {
	return logContext + ".log"
}

// PatternFileNamer expands {context} and {event} in pattern
func PatternFileNamer(pattern string) FileNamer {
	return func(logContext, eventName string) string {
		return strings.NewReplacer("{context}", logContext, "{event}", eventName).Replace(pattern)
	}
}

// FileSinkConfig configures the disc sink
type FileSinkConfig struct {
	Dir      string
	Context  string
	Template string
	Namer    FileNamer
	Rotation configtypes.RotationConfig
}

// FileSink appends template-formatted events to rotating log files under Dir.
// Files are opened lazily, one per name produced by the namer; appends to
// the same file are serialized by the lumberjack writer.
type FileSink struct {
	dir       string
	namer     FileNamer
	rotation  configtypes.RotationConfig
	formatter *TemplateFormatter
	logger    *zap.Logger

	mu      sync.RWMutex
	writers map[string]*lumberjack.Logger
	closed  bool
}

// NewFileSink creates the log directory and validates the template
func NewFileSink(config FileSinkConfig, logger *zap.Logger) (*FileSink, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("%w: disc sink requires a log directory", ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", config.Dir, err)
	}

	template := config.Template
	if template == "" {
		template = DefaultTemplate
	}
	formatter, err := NewTemplateFormatter(template)
	if err != nil {
		return nil, fmt.Errorf("invalid template for event log %s: %w", config.Dir, err)
	}

	namer := config.Namer
	if namer == nil {
		namer = DefaultFileNamer
	}

	return &FileSink{
		dir:       config.Dir,
		namer:     namer,
		rotation:  effectiveRotation(config.Rotation),
		formatter: formatter,
		logger:    logger,
		writers:   make(map[string]*lumberjack.Logger),
	}, nil
}

// Emit formats the event and appends it to the file chosen by the namer.
// A write that fails midway leaves the partial line in place and terminates
// it with a newline so the next record starts on its own line.
func (f *FileSink) Emit(event *Event) error {
	name := filepath.Base(f.namer(event.Context, event.Name))
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("file namer returned no usable name for %s", event.Name)
	}
	if err := f.ensureWriter(name); err != nil {
		return err
	}

	// Read lock keeps Close from closing the writer mid-append
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrSinkClosed
	}
	writer := f.writers[name]

	line := f.formatter.Format(event) + "\n"
	n, err := writer.Write([]byte(line))
	if err != nil {
		if n > 0 && n < len(line) {
			_, _ = writer.Write([]byte("\n"))
		}
		return fmt.Errorf("failed to write event to %s: %w", name, err)
	}
	return nil
}

func (f *FileSink) ensureWriter(name string) error {
	f.mu.RLock()
	_, ok := f.writers[name]
	closed := f.closed
	f.mu.RUnlock()

	if closed {
		return ErrSinkClosed
	}
	if ok {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrSinkClosed
	}
	if _, ok := f.writers[name]; !ok {
		writer := logger.NewRotatingWriter(filepath.Join(f.dir, name), f.rotation)
		f.writers[name] = writer
		f.logger.Debug("Opened event log file", zap.String("file", writer.Filename))
	}
	return nil
}

// Files returns the names of the files opened so far, sorted
func (f *FileSink) Files() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.writers))
	for name := range f.writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rotate forces rotation of every open file
func (f *FileSink) Rotate() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for name, w := range f.writers {
		if err := w.Rotate(); err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all file handles. Emit after Close returns ErrSinkClosed.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	for name, w := range f.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
