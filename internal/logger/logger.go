// Package logger provides a level-filtered, color-capable console logger
// for coordination events: lock acquired/released, world registered/
// invalidated, sweep started/finished. All output is prefixed with an
// [HH:MM:SS] timestamp; implementations are safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	levelDebug int = 0
	levelInfo  int = 1
	levelWarn  int = 2
	levelError int = 3
)

// Logger logs coordination events to a writer with timestamps and level
// filtering. Color output is automatically enabled for terminal output.
type Logger struct {
	writer   io.Writer
	minLevel int
	mu       sync.Mutex
	color    bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithColor overrides terminal auto-detection. mode is one of "always",
// "never", "auto" (matching the config.yaml `log.color` field); any other
// value behaves like "auto".
func WithColor(mode string) Option {
	return func(l *Logger) {
		switch strings.ToLower(mode) {
		case "always":
			l.color = true
		case "never":
			l.color = false
		default:
			l.color = isTerminal(l.writer)
		}
	}
}

// New creates a Logger writing to w, filtering messages below level
// ("debug", "info", "warn", "error"; defaults to "info" if unrecognized).
func New(w io.Writer, level string, opts ...Option) *Logger {
	l := &Logger{writer: w, minLevel: levelFromString(level), color: isTerminal(w)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func isTerminal(w io.Writer) bool {
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func levelFromString(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *Logger) log(level int, label string, format string, args ...interface{}) {
	if l == nil || l.writer == nil || level < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05")

	l.mu.Lock()
	defer l.mu.Unlock()

	var line string
	if l.color {
		line = fmt.Sprintf("[%s] %s %s\n", ts, l.coloredLabel(level, label), msg)
	} else {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, label, msg)
	}
	l.writer.Write([]byte(line))
}

func (l *Logger) coloredLabel(level int, label string) string {
	switch level {
	case levelDebug:
		return color.New(color.FgHiBlack).Sprintf("[%s]", label)
	case levelWarn:
		return color.New(color.FgYellow).Sprintf("[%s]", label)
	case levelError:
		return color.New(color.FgRed).Sprintf("[%s]", label)
	default:
		return color.New(color.FgCyan).Sprintf("[%s]", label)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(levelDebug, "DEBUG", format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) { l.log(levelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(levelWarn, "WARN", format, args...) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(levelError, "ERROR", format, args...)
}
