// Package logging wraps log/slog with the bridge's configuration, a
// component-scoped Logger, and asynchronous event and metric writers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Well-known values of Config.Output. Anything else is a file path.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

type Config struct {
	Level     LogLevel  `yaml:"level" json:"level"`
	Format    LogFormat `yaml:"format" json:"format"`
	Output    string    `yaml:"output" json:"output"`
	AddSource bool      `yaml:"add_source" json:"add_source" split_words:"true"`
}

// DefaultConfig logs text at info level to stderr. stdout is left alone since
// the stdio transport owns it.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: OutputStderr,
	}
}

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLevel converts a LogLevel to a slog.Level. Unknown levels map to Info.
func ParseLevel(level LogLevel) slog.Level {
	if l, ok := slogLevels[level]; ok {
		return l
	}
	return slog.LevelInfo
}

// Logger is a slog.Logger whose level can be changed at runtime. Loggers
// derived with WithComponent, WithFields or WithContext share that level.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case OutputStdout:
		return os.Stdout, nil, nil
	case OutputStderr, "":
		return os.Stderr, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

// NewLogger builds a Logger writing to config.Output. Close releases the
// output when it is a file.
func NewLogger(config Config) (*Logger, error) {
	w, closer, err := openOutput(config.Output)
	if err != nil {
		return nil, err
	}

	logger := NewLoggerWithWriter(config, w)
	logger.closer = closer
	return logger, nil
}

// NewLoggerWithWriter builds a Logger that writes to w, ignoring config.Output.
func NewLoggerWithWriter(config Config, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(config.Level))

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   config.AddSource,
		ReplaceAttr: rfc3339Time,
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler), level: level}
}

func rfc3339Time(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
	}
	return a
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// SetLevel changes the level of l and of every logger derived from it.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Set(ParseLevel(level))
}

// Level reports the active level. Levels that ParseLevel did not recognize
// read back as LevelInfo.
func (l *Logger) Level() LogLevel {
	current := l.level.Level()
	for name, lvl := range slogLevels {
		if lvl == current {
			return name
		}
	}
	return LevelInfo
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithFields adds fields in key order so output is stable.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return l.with(args...)
}

// Close closes the log file, if the logger opened one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
