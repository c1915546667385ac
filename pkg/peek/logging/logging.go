// Package logging provides the leveled logger used across peek.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging interface handed to peek components.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// writerLogger writes one line per message to an io.Writer
type writerLogger struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format string // "json" or "text"
	now    func() time.Time
}

// NewWriterLogger returns a logger writing messages at or above level.
// Format "json" writes one JSON object per line; anything else writes
// "[LEVEL] message" lines.
func NewWriterLogger(w io.Writer, level Level, format string) Logger {
	if format == "" {
		format = "text"
	}
	return &writerLogger{w: w, level: level, format: format, now: time.Now}
}

type logEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (l *writerLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		data, err := json.Marshal(logEntry{
			Time:    l.now().Format(time.RFC3339),
			Level:   strings.ToLower(level.String()),
			Message: msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintf(l.w, "%s\n", data)
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", level, msg)
}

func (l *writerLogger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *writerLogger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *writerLogger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *writerLogger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// BufferedLogger captures messages for later inspection.
type BufferedLogger struct {
	mu    sync.Mutex
	lines []string
}

func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{lines: make([]string, 0)}
}

func (l *BufferedLogger) add(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

func (l *BufferedLogger) Debugf(format string, args ...any) { l.add(LevelDebug, format, args...) }
func (l *BufferedLogger) Infof(format string, args ...any)  { l.add(LevelInfo, format, args...) }
func (l *BufferedLogger) Warnf(format string, args ...any)  { l.add(LevelWarn, format, args...) }
func (l *BufferedLogger) Errorf(format string, args ...any) { l.add(LevelError, format, args...) }

// Lines returns a copy of the captured lines.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.lines))
	copy(result, l.lines)
	return result
}

// String returns all captured output, one line per message.
func (l *BufferedLogger) String() string {
	lines := l.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
}

// nullLogger discards all output
type nullLogger struct{}

func (nullLogger) Debugf(string, ...any) {}
func (nullLogger) Infof(string, ...any)  {}
func (nullLogger) Warnf(string, ...any)  {}
func (nullLogger) Errorf(string, ...any) {}

// NullLogger returns a logger that discards all output.
func NullLogger() Logger {
	return nullLogger{}
}

// Open resolves an output name to a writer: "stderr" (or empty),
// "stdout", or a file path opened for appending. The returned close
// function is a no-op for the standard streams.
func Open(output string) (io.Writer, func() error, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, func() error { return nil }, nil
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, f.Close, nil
}
