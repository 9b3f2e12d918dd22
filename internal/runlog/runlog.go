/*
Package runlog keeps the append-only text log of scraper runs.
*/
package runlog

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

type Logger struct {
	path  string
	now   func() time.Time
	mutex sync.Mutex
}

func New(path string) *Logger {
	return &Logger{path: path, now: time.Now}
}

// WithClock replaces the clock used to stamp lines.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

func (l *Logger) Path() string {
	return l.path
}

// Append writes one timestamped line. Write failures are reported on the
// console and otherwise ignored.
func (l *Logger) Append(text string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	line := fmt.Sprintf("%s - %s\n", l.now().Format(timestampLayout), singleLine(text))

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("failed to create run log directory", "dir", dir, "error", err)
			return
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("failed to open run log", "path", l.path, "error", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close run log", "path", l.path, "error", err)
		}
	}()

	if _, err := f.WriteString(line); err != nil {
		slog.Warn("failed to write run log", "path", l.path, "error", err)
	}
}

func (l *Logger) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Lines reads a run log back, one entry per element.
func Lines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run log %s: %w", path, err)
	}
	return lines, nil
}

// singleLine folds a multi-line message so each event stays on one line.
func singleLine(text string) string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}
