package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	ansiCodeReset     = "\033[0m"
	ansiCodeRed       = "\033[31m"
	ansiCodeGreen     = "\033[32m"
	ansiCodeYellow    = "\033[33m"
	ansiCodeCyan      = "\033[36m"
	ansiCodeGray      = "\033[90m"
	ansiCodeUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var ansiCodeMap = map[slog.Level]string{
	slog.LevelDebug: ansiCodeCyan,
	slog.LevelInfo:  ansiCodeGreen,
	slog.LevelWarn:  ansiCodeYellow,
	slog.LevelError: ansiCodeRed,
}

// ConsoleHandler implements slog.Handler with a compact, human-readable
// single record per entry followed by the calling function and location.
type ConsoleHandler struct {
	// Output is the destination for log output (typically os.Stdout or os.Stderr)
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger names (and their dotted parents) to minimum levels
	PkgLevels map[string]slog.Level
	// NoColor disables ANSI escape sequences
	NoColor bool

	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	attrs = append(attrs, h.attrs...)

	if !h.pkgEnabled(loggerName(attrs), r.Level) {
		return nil
	}

	var out strings.Builder

	out.WriteString(h.paint(ansiCodeGray, r.Time.Format("15:04:05.000000")))
	out.WriteString(" " + h.paint(ansiCodeMap[r.Level], "["+r.Level.String()+"]"))
	out.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		out.WriteString(" " + h.paint(ansiCodeGray, "|"))
		h.renderAttrs(&out, prefix, attrs)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fn := frame.Function

		if idx := strings.LastIndex(fn, string(os.PathSeparator)); idx >= 0 {
			fn = fn[idx+1:]
		}

		out.WriteString("\n-> " + h.paint(ansiCodeGray, fn+"()"))
		out.WriteString(" in " + h.paint(ansiCodeUnderline, frame.File+":"+strconv.Itoa(frame.Line)))
	}

	if _, err := fmt.Fprintln(h.Output, out.String()); err != nil {
		return fmt.Errorf("write log record: %w", err)
	}

	return nil
}

// pkgEnabled applies PkgLevels to the logger name, most specific entry first.
// "svc.pantrysvc.http_transport" is matched against itself, "svc.pantrysvc",
// "svc" and finally the empty key.
func (h *ConsoleHandler) pkgEnabled(name string, level slog.Level) bool {
	if len(h.PkgLevels) == 0 {
		return true
	}

	key := name

	for {
		if minLevel, ok := h.PkgLevels[key]; ok {
			return level >= minLevel
		}

		if key == "" {
			return true
		}

		if idx := strings.LastIndex(key, "."); idx >= 0 {
			key = key[:idx]
		} else {
			key = ""
		}
	}
}

func loggerName(attrs []slog.Attr) string {
	for _, attr := range attrs {
		if attr.Key == "logger" {
			return attr.Value.String()
		}
	}

	return ""
}

func (h *ConsoleHandler) paint(code, s string) string {
	if h.NoColor || code == "" {
		return s
	}

	return code + s + ansiCodeReset
}

func (h *ConsoleHandler) renderAttrs(out *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(out, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		out.WriteString(" " + prefix + attr.Key + "=" + h.paint(ansiCodeGray, attr.Value.String()))
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &clone
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)

	return &clone
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
