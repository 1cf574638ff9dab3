// Package logging provides the run's two output channels: a styled
// console logger and an optional append-only file sink that mirrors
// subprocess output for later inspection.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// NewConsole builds the console logger. Verbose raises the level to
// Debug, which also surfaces the resolved-variable audit.
func NewConsole(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// FileSink appends timestamped lines to a log file so operators can
// inspect a run after the terminal scrollback is gone. The file is
// truncated at process start; concurrent appends are serialized.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (and resets) the sink at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &FileSink{file: f}, nil
}

// Printf writes a single timestamped line.
func (s *FileSink) Printf(format string, args ...any) {
	if s == nil || s.file == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := time.Now().Format(time.RFC3339)
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.file, "[%s] %s\n", timestamp, line)
}

// Close releases the file handle.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
