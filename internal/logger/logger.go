// Package logger is the process-wide structured logger. Messages carry
// Fields; the handler is chosen once from the configured level and output
// format.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	// testOutput is used to capture log output during tests
	testOutput   io.Writer
	testOutputMu sync.Mutex
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

// OutputFormat selects the slog handler.
type OutputFormat int

const (
	// FormatAuto uses text on a terminal and JSON when stderr is redirected.
	FormatAuto OutputFormat = iota
	// FormatText always uses slog.TextHandler.
	FormatText
	// FormatJSON always uses slog.JSONHandler.
	FormatJSON
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
}

func getOutput() io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the global logger for CLI operations.
func InitLogger(logLevel string, format OutputFormat) {
	output := getOutput()
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	if format == FormatAuto {
		format = FormatJSON
		if f, ok := output.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = FormatText
		}
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()
}

func get() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		InitLogger("info", FormatAuto)
		return get()
	}
	return l
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	get().Info(msg, attrs(fields...)...)
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	get().Debug(msg, attrs(fields...)...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	get().Warn(msg, attrs(fields...)...)
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	get().Error(msg, attrs(fields...)...)
}

// Success logs an info message marked with status=success.
func Success(msg string, fields ...Fields) {
	get().Info(msg, append(attrs(fields...), "status", "success")...)
}

// attrs flattens fields into slog key-value pairs, sorted by key so lines
// are stable.
func attrs(fields ...Fields) []interface{} {
	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		result = append(result, k, merged[k])
	}
	return result
}
