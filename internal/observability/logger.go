// Package observability provides the structured logger shared by all
// components. Messages carry a free-form set of fields that are rendered as
// key=value pairs after the message.
package observability

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

// ParseLevel maps a config value such as "debug" to a LogLevel.
// Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	lvl := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelRank[lvl]; ok {
		return lvl
	}
	return LogLevelInfo
}

// Logger is the logging interface used across the module.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	WithPrefix(prefix string) Logger
}

// StandardLogger writes entries through the standard log package.
type StandardLogger struct {
	prefix string
	level  LogLevel
	out    *log.Logger
}

// NewStandardLogger creates a logger writing to stderr at the given level.
func NewStandardLogger(prefix string, level LogLevel) *StandardLogger {
	return NewStandardLoggerTo(os.Stderr, prefix, level)
}

// NewStandardLoggerTo creates a logger writing to w.
func NewStandardLoggerTo(w io.Writer, prefix string, level LogLevel) *StandardLogger {
	return &StandardLogger{prefix: prefix, level: level, out: log.New(w, "", 0)}
}

func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields)
}

func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields)
}

func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields)
}

func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LogLevelError, msg, fields)
}

// Fatal logs regardless of level and exits the process.
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.log(LogLevelFatal, msg, fields)
	os.Exit(1)
}

// WithPrefix returns a child logger. Prefixes nest as parent.child.
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	p := prefix
	if l.prefix != "" {
		p = l.prefix + "." + prefix
	}
	return &StandardLogger{prefix: p, level: l.level, out: l.out}
}

func (l *StandardLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.level] {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	l.out.Printf("%s [%s] [%s] %s%s", ts, level, l.prefix, msg, formatFields(fields))
}

// formatFields renders fields sorted by key so output is stable.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]interface{}) {}
func (NoopLogger) Info(string, map[string]interface{})  {}
func (NoopLogger) Warn(string, map[string]interface{})  {}
func (NoopLogger) Error(string, map[string]interface{}) {}
func (NoopLogger) Fatal(string, map[string]interface{}) {}
func (n NoopLogger) WithPrefix(string) Logger           { return n }
