// Package logger provides structured logging for the tree models and their host,
// with a coloured console format for development and JSON for production.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Output formats.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Attribute keys with special rendering in the pretty format.
const (
	ComponentKey = "component"
	ErrorKey     = "error"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiPurple = "\033[35m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
	ansiFaint  = "\033[2m"
)

type levelStyle struct {
	label string
	color string
}

var levelStyles = map[slog.Level]levelStyle{
	slog.LevelDebug: {"DBG", ansiPurple},
	slog.LevelInfo:  {"INF", ansiGreen},
	slog.LevelWarn:  {"WRN", ansiYellow},
	slog.LevelError: {"ERR", ansiRed},
}

// Logger is the process-wide logger handed out by the DI container.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Writer io.Writer
	// Format is json or pretty. Empty picks json in production, pretty elsewhere.
	Format      string
	Environment string
	Level       slog.Level
	AddSource   bool
}

// New creates a logger writing to cfg.Writer, stdout by default.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: shortenSource,
	}

	var h slog.Handler
	switch format(cfg) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = NewPrettyHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

func format(cfg Config) string {
	if cfg.Format != "" {
		return cfg.Format
	}
	if cfg.Environment == "production" {
		return FormatJSON
	}
	return FormatPretty
}

func shortenSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok {
		src.File = filepath.Base(src.File)
	}
	return a
}

// Discard returns a logger that drops every record. Components use it when
// the caller passes a nil *slog.Logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Component scopes l to a named component. A nil l yields a discarding logger.
func Component(l *slog.Logger, name string, args ...any) *slog.Logger {
	return OrDiscard(l).With(append([]any{ComponentKey, name}, args...)...)
}

// ParseLevel converts a config value to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// PrettyHandler writes one coloured line per record:
//
//	15:04:05 INF [tag_model] message key=value error=...
//
// The component attribute becomes the bracketed prefix and errors are shown
// last in red. Keys added under a group get a dotted prefix.
type PrettyHandler struct {
	opts      slog.HandlerOptions
	mu        *sync.Mutex
	w         io.Writer
	component string
	attrs     []slog.Attr
	prefix    string
}

// NewPrettyHandler creates a pretty handler. opts may be nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle implements slog.Handler.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	component := h.component
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	var errs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		switch {
		case a.Key == ComponentKey && h.prefix == "":
			component = a.Value.String()
		case a.Key == ErrorKey:
			errs = append(errs, a)
		default:
			a.Key = h.prefix + a.Key
			attrs = append(attrs, a)
		}
		return true
	})

	var b strings.Builder
	paint(&b, ansiFaint, r.Time.Format(time.TimeOnly))
	b.WriteByte(' ')
	style, ok := levelStyles[r.Level]
	if !ok {
		style = levelStyle{r.Level.String(), ansiBlue}
	}
	paint(&b, style.color, style.label)
	b.WriteByte(' ')

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		paint(&b, ansiFaint, filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line))
		b.WriteByte(' ')
	}
	if component != "" {
		paint(&b, ansiBlue, "["+component+"]")
		b.WriteByte(' ')
	}
	paint(&b, ansiBold, r.Message)

	for _, a := range attrs {
		b.WriteByte(' ')
		paint(&b, ansiCyan, a.Key+"="+formatValue(a.Value))
	}
	for _, a := range errs {
		b.WriteByte(' ')
		paint(&b, ansiRed, a.Key+"="+formatValue(a.Value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		if a.Key == ComponentKey && h.prefix == "" {
			next.component = a.Value.String()
			continue
		}
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return next
}

// WithGroup implements slog.Handler.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *PrettyHandler) clone() *PrettyHandler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	return &next
}

func paint(b *strings.Builder, color, s string) {
	b.WriteString(color)
	b.WriteString(s)
	b.WriteString(ansiReset)
}

// formatValue renders v for the pretty format, quoting strings with spaces.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	default:
		return v.String()
	}
}
