package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Level is the minimum severity a ConsoleLogger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel maps "debug", "info" and "error" to a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// ConsoleLogger writes human-readable logs to stdout/stderr.
// Used for normal operation and debugging.
type ConsoleLogger struct {
	level  Level
	stdout io.Writer
	stderr io.Writer
}

// NewConsoleLogger logs everything, including debug output.
func NewConsoleLogger() *ConsoleLogger {
	return NewConsoleLoggerWithLevel(LevelDebug)
}

func NewConsoleLoggerWithLevel(level Level) *ConsoleLogger {
	return &ConsoleLogger{level: level, stdout: os.Stdout, stderr: os.Stderr}
}

// NewStderrLogger writes every level to stderr. The MCP stdio transport
// owns stdout, so the mcp command logs this way.
func NewStderrLogger(level Level) *ConsoleLogger {
	return &ConsoleLogger{level: level, stdout: os.Stderr, stderr: os.Stderr}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	if c.level > LevelInfo {
		return
	}
	fmt.Fprintf(c.stdout, "[INFO] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(c.stderr, "[ERROR] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if c.level > LevelDebug {
		return
	}
	fmt.Fprintf(c.stdout, "[DEBUG] "+msg+"\n", args...)
}

// SilentLogger discards all log messages.
// Used in tests and wherever log output would interfere with the output.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
