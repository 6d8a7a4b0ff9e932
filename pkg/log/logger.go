// Structured logging for the MMU sensor host.
//
// Provides leveled logging with structured key-value fields and
// per-component prefixes.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota

	// INFO level for general informational messages
	INFO

	// WARN level for warning messages
	WARN

	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// Logger writes leveled log messages to a single destination.
type Logger struct {
	mu         sync.Mutex
	prefix     string
	writer     io.Writer
	level      LogLevel
	timeFormat string
	fields     Fields
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = New(os.Stderr, INFO)
	})
	return defaultLogger
}

// New creates a logger writing to w at the given minimum level.
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		writer:     w,
		level:      level,
		timeFormat: "2006-01-02 15:04:05.000",
	}
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Component returns a child logger with a component prefix.
func (l *Logger) Component(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{
		prefix:     name,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		fields:     cloneFields(l.fields),
	}
	return child
}

// WithFields returns a child logger with persistent fields attached.
func (l *Logger) WithFields(fields Fields) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := cloneFields(l.fields)
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		prefix:     l.prefix,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		fields:     merged,
	}
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format(l.timeFormat))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if l.prefix != "" {
		b.WriteString(" ")
		b.WriteString(l.prefix)
		b.WriteString(":")
	}
	b.WriteString(" ")
	fmt.Fprintf(&b, format, args...)

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
	}
	b.WriteString("\n")
	io.WriteString(l.writer, b.String())
}

// Debugf logs at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warnf logs at WARN level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Package-level helpers using the default logger.

func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Default().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }
