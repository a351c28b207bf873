package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger appends one timestamped line per pipeline event to a file.
// A nil or file-less logger discards everything.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger opens path for appending, creating parent directories.
// An empty path yields a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}

	l := &DebugLogger{file: f}
	l.Log("--- guardian debug log opened %s ---", time.Now().Format(time.RFC3339))
	return l, nil
}

// NopLogger returns a logger that writes nothing.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes a formatted line prefixed with the wall-clock time.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(line)
}

// Emit implements EventSink.
func (l *DebugLogger) Emit(e Event) {
	prefix := fmt.Sprintf("run=%s %s stage=%s", e.RunID, e.Type, e.Stage)
	switch {
	case e.Error != nil:
		l.Log("%s err=%v", prefix, e.Error)
	case e.Duration > 0:
		l.Log("%s duration=%s %s", prefix, e.Duration.Round(time.Millisecond), e.Message)
	default:
		l.Log("%s %s", prefix, e.Message)
	}
}

// Close closes the underlying file. It is safe on a no-op logger.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
