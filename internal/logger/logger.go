// Package logger defines the leveled logger injected into every component.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelPrefixes = [...]string{"ERROR: ", "WARN:  ", "INFO:  ", "DEBUG: "}

// Logger is the logging contract shared by the session, stream load,
// migration and meta packages.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	// WithPrefix returns a Logger with the same output and verbosity whose
	// lines carry the given prefix.
	WithPrefix(prefix string) Logger
}

// Ensure implementations satisfy the interface.
var (
	_ Logger = (*nopLogger)(nil)
	_ Logger = (*standardLogger)(nil)
	_ Logger = (*BufferLogger)(nil)
)

// NopLogger discards everything.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (n *nopLogger) Debugf(format string, v ...any) {}
func (n *nopLogger) Infof(format string, v ...any)  {}
func (n *nopLogger) Warnf(format string, v ...any)  {}
func (n *nopLogger) Errorf(format string, v ...any) {}
func (n *nopLogger) WithPrefix(string) Logger       { return n }

// =============================================================================
// PROCESS-WIDE DEFAULT
// =============================================================================

var (
	defaultMu sync.RWMutex
	current   Logger = NewStandardLogger(os.Stderr)
)

// Default returns the process-wide logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return current
}

// SetDefault replaces the process-wide logger and returns a function that
// restores the previous one.
func SetDefault(l Logger) (restore func()) {
	if l == nil {
		l = NopLogger
	}
	defaultMu.Lock()
	prev := current
	current = l
	defaultMu.Unlock()
	return func() { SetDefault(prev) }
}

// OrDefault returns l, or the process-wide logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

// =============================================================================
// STANDARD LOGGER
// =============================================================================

// standardLogger writes through log.Logger with UTC microsecond timestamps.
type standardLogger struct {
	logger    *log.Logger
	verbosity int
	prefix    string
	w         io.Writer
}

type utcWriter struct {
	w io.Writer
}

func (u utcWriter) Write(p []byte) (int, error) {
	return fmt.Fprintf(u.w, "%s %s", time.Now().UTC().Format(timeLayout), p)
}

func newStandardLogger(w io.Writer, verbosity int, prefix string) *standardLogger {
	return &standardLogger{
		logger:    log.New(utcWriter{w: w}, "", 0),
		verbosity: verbosity,
		prefix:    prefix,
		w:         w,
	}
}

// NewStandardLogger logs at info level and above.
func NewStandardLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelInfo, "")
}

// NewVerboseLogger logs everything including debug lines.
func NewVerboseLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelDebug, "")
}

// NewLevelLogger logs lines at level and above (LevelError is the quietest).
func NewLevelLogger(w io.Writer, level int) Logger {
	return newStandardLogger(w, level, "")
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a level.
func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func (s *standardLogger) printf(level int, format string, v ...any) {
	if level > s.verbosity {
		return
	}
	prefix := levelPrefixes[level]
	if s.prefix != "" {
		prefix += "[" + s.prefix + "] "
	}
	s.logger.Printf(prefix+format, v...)
}

func (s *standardLogger) Debugf(format string, v ...any) { s.printf(LevelDebug, format, v...) }
func (s *standardLogger) Infof(format string, v ...any)  { s.printf(LevelInfo, format, v...) }
func (s *standardLogger) Warnf(format string, v ...any)  { s.printf(LevelWarn, format, v...) }
func (s *standardLogger) Errorf(format string, v ...any) { s.printf(LevelError, format, v...) }

func (s *standardLogger) WithPrefix(prefix string) Logger {
	return newStandardLogger(s.w, s.verbosity, prefix)
}

// =============================================================================
// BUFFER LOGGER
// =============================================================================

// BufferLogger keeps every line in memory so tests can assert on warnings.
type BufferLogger struct {
	mu    *sync.Mutex
	lines *[]string
	pfx   string
}

// NewBufferLogger returns an empty BufferLogger.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{mu: &sync.Mutex{}, lines: &[]string{}}
}

func (b *BufferLogger) add(level int, format string, v ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := levelPrefixes[level]
	if b.pfx != "" {
		line += "[" + b.pfx + "] "
	}
	*b.lines = append(*b.lines, line+fmt.Sprintf(format, v...))
}

func (b *BufferLogger) Debugf(format string, v ...any) { b.add(LevelDebug, format, v...) }
func (b *BufferLogger) Infof(format string, v ...any)  { b.add(LevelInfo, format, v...) }
func (b *BufferLogger) Warnf(format string, v ...any)  { b.add(LevelWarn, format, v...) }
func (b *BufferLogger) Errorf(format string, v ...any) { b.add(LevelError, format, v...) }

// WithPrefix shares the underlying buffer.
func (b *BufferLogger) WithPrefix(prefix string) Logger {
	return &BufferLogger{mu: b.mu, lines: b.lines, pfx: prefix}
}

// Lines returns a copy of everything logged so far.
func (b *BufferLogger) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), *b.lines...)
}

// Warnings returns only the warning lines.
func (b *BufferLogger) Warnings() []string {
	var out []string
	for _, l := range b.Lines() {
		if strings.HasPrefix(l, levelPrefixes[LevelWarn]) {
			out = append(out, l)
		}
	}
	return out
}
