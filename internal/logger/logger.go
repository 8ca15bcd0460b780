// Package logger provides process-wide logging for LocalKnowledge.
// Debug and info messages are only written when verbose mode is enabled
// via the --verbose flag; warnings and errors are always written.
// Output goes to stderr so it never mixes with command output or the
// MCP stdio stream.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	verbose bool
	sink    = zapcore.Lock(zapcore.AddSync(os.Stderr))
	base    = build(sink, false)
)

func build(ws zapcore.WriteSyncer, v bool) *zap.Logger {
	level := zapcore.WarnLevel
	if v {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      bracketLevel,
		ConsoleSeparator: " ",
	})
	return zap.New(zapcore.NewCore(enc, ws, level))
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = build(sink, verbose)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = zapcore.Lock(zapcore.AddSync(w))
	base = build(sink, verbose)
}

// L returns the underlying structured logger for components that log
// with fields (HTTP middleware, scheduled jobs).
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	L().Debug(fmt.Sprintf(format, args...))
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		_, _ = fmt.Fprintf(sink, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	L().Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	L().Warn(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func Error(format string, args ...any) {
	L().Error(fmt.Sprintf(format, args...))
}
