// Package logger provides leveled, structured logging for the CLI. Output
// goes to stderr as either human-readable lines or one JSON object per line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a user-supplied level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config controls filtering and formatting.
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
	DryRun    bool
}

// Logger writes filtered, formatted entries to a single writer.
type Logger struct {
	config Config

	mu  sync.Mutex
	out io.Writer
}

var defaultLogger *Logger

// Initialize replaces the default logger. Safe to call more than once;
// commands call it once flags are parsed.
func Initialize(config Config) error {
	defaultLogger = New(config, os.Stderr)
	return nil
}

// New returns a logger writing to out.
func New(config Config, out io.Writer) *Logger {
	return &Logger{config: config, out: out}
}

// Field is one key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err attaches an error under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err.Error()} }

// LogEntry is the JSON shape of one emitted line.
type LogEntry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Log emits message at level unless filtered by the configured threshold.
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if level < l.config.Level {
		return
	}

	entry := LogEntry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
	}
	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}
	// Debug lines carry their call site.
	if level == DebugLevel {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.File = file
			entry.Line = line
		}
	}

	var line string
	if l.config.JSON {
		b, err := json.Marshal(entry)
		if err != nil {
			b = []byte(fmt.Sprintf(`{"level":%q,"message":%q}`, entry.Level, entry.Message))
		}
		line = string(b)
	} else {
		line = l.formatPretty(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

var levelColors = map[string]string{
	"DEBUG": "\033[36m", // cyan
	"INFO":  "\033[32m", // green
	"WARN":  "\033[33m", // yellow
	"ERROR": "\033[31m", // red
}

const colorReset = "\033[0m"

func (l *Logger) formatPretty(entry LogEntry) string {
	var b strings.Builder

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	b.WriteString(" [")
	if c, ok := levelColors[entry.Level]; ok && l.config.UseColor {
		b.WriteString(c)
		b.WriteString(entry.Level)
		b.WriteString(colorReset)
	} else {
		b.WriteString(entry.Level)
	}
	b.WriteString("]")

	if entry.Component != "" {
		b.WriteString(" ")
		b.WriteString(entry.Component)
		b.WriteString(":")
	}

	if l.config.DryRun {
		if l.config.UseColor {
			b.WriteString(" \033[35m[DRY-RUN]" + colorReset)
		} else {
			b.WriteString(" [DRY-RUN]")
		}
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, entry.Fields[k])
		}
		b.WriteString("}")
	}

	if entry.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", entry.File, entry.Line)
	}

	return b.String()
}

// Package-level helpers log through the default logger. Info falls back to
// bare stderr when nothing has been initialized yet.

func Debug(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(DebugLevel, message, fields...)
	}
}

func Info(message string, fields ...Field) {
	if defaultLogger == nil {
		fmt.Fprintf(os.Stderr, "[INFO] gsd: %s\n", message)
		return
	}
	defaultLogger.Log(InfoLevel, message, fields...)
}

func Warn(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(WarnLevel, message, fields...)
	}
}

func Error(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(ErrorLevel, message, fields...)
	}
}

// SetOutput redirects the default logger, used by tests capturing output.
func SetOutput(w io.Writer) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.out = w
		defaultLogger.mu.Unlock()
	}
}
