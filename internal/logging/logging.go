// Package logging provides the structured logger shared by every
// component of the session core.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	mu     sync.RWMutex
	global *slog.Logger
)

var (
	faintColor = color.New(color.Faint)
	cyanColor  = color.New(color.FgCyan)
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgBlue)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

// prettyHandler is a minimal colorized slog.Handler for interactive use.
type prettyHandler struct {
	level slog.Level
}

func newPrettyHandler(level slog.Level) *prettyHandler { return &prettyHandler{level: level} }

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	timeStr := r.Time.Format("15:04:05.000")

	var levelColor *color.Color
	var levelStr string
	switch r.Level {
	case slog.LevelDebug:
		levelColor, levelStr = debugColor, "DEBUG"
	case slog.LevelInfo:
		levelColor, levelStr = infoColor, "INFO "
	case slog.LevelWarn:
		levelColor, levelStr = warnColor, "WARN "
	case slog.LevelError:
		levelColor, levelStr = errColor, "ERROR"
	default:
		levelColor, levelStr = color.New(), "     "
	}

	var attrs []string
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", cyanColor.Sprint(a.Key), a.Value.Any()))
		return true
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", faintColor.Sprint(timeStr), levelColor.Sprint(levelStr), r.Message)
	if len(attrs) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(attrs, " "))
	}
	b.WriteString("\n")
	_, err := fmt.Fprint(os.Stderr, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *prettyHandler) WithGroup(_ string) slog.Handler      { return h }

// ValidLevel reports whether name is one of the five recognized log
// levels (verbose, debug, info, warn/warning, error), or empty.
func ValidLevel(name string) bool {
	_, ok := levelFromString(name)
	return ok
}

// levelFromString parses the five recognized log levels.
func levelFromString(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose":
		return slog.LevelDebug - 4, true
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

// Init configures the global logger. Safe to call more than once; the
// last call wins. structured selects slog.NewJSONHandler (service/CI
// environments) over the interactive pretty handler.
func Init(levelName string, structured bool) {
	level, ok := levelFromString(levelName)
	if !ok {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = newPrettyHandler(level)
	}

	mu.Lock()
	global = slog.New(handler)
	mu.Unlock()
}

// UseStructuredByDefault mirrors common CI/production detection: when
// running under a container orchestrator or CI runner, JSON output is
// easier to ingest than the pretty handler.
func UseStructuredByDefault() bool {
	for _, env := range []string{"CI", "KUBERNETES_SERVICE_HOST", "CONTAINER"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

// Logger returns the configured global logger, lazily initializing it
// at info level if Init was never called.
func Logger() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("info", UseStructuredByDefault())
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithSession attaches session identity fields to a logger.
func WithSession(l *slog.Logger, scid string, deviceSerial string) *slog.Logger {
	return l.With("scid", scid, "device", deviceSerial)
}

// WithStream attaches media-stream identity fields to a logger.
func WithStream(l *slog.Logger, stream string) *slog.Logger {
	return l.With("stream", stream)
}

// PrefixWriter is an io.Writer that forwards each line it receives to
// the global logger, tagged with a static prefix. It is intended for
// capturing a spawned server process's stdout/stderr.
type PrefixWriter struct {
	prefix string
	level  slog.Level
}

// NewPrefixWriter creates a writer that logs each line at Info level
// under the given prefix.
func NewPrefixWriter(prefix string) *PrefixWriter {
	return &PrefixWriter{prefix: prefix, level: slog.LevelInfo}
}

// NewPrefixWriterLevel creates a writer that logs each line at the
// given level.
func NewPrefixWriterLevel(prefix string, level slog.Level) *PrefixWriter {
	return &PrefixWriter{prefix: prefix, level: level}
}

func (w *PrefixWriter) Write(p []byte) (int, error) {
	lines := strings.Split(strings.TrimRight(string(p), "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		Logger().Log(context.Background(), w.level, w.prefix+" "+line)
	}
	return len(p), nil
}
