// Package debug provides the CLI logger and a context-carried debug flag.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/apibean/apibean-cli/internal/header"
)

type contextKey struct{}

// secretKeys are log attribute keys whose values never reach the output.
var secretKeys = map[string]bool{
	"access_token":  true,
	"token":         true,
	"authorization": true,
	"password":      true,
}

// WithDebug returns a context with debug mode enabled or disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled reports whether debug mode is enabled in ctx.
func IsEnabled(ctx context.Context) bool {
	v, _ := ctx.Value(contextKey{}).(bool)
	return v
}

// NewLogger returns a text logger writing to w at debug level when enabled
// and warn level otherwise. Secret attributes are masked.
func NewLogger(w io.Writer, enabled bool) *slog.Logger {
	level := slog.LevelWarn
	if enabled {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: maskSecrets,
	}))
}

// SetupLogger installs a logger writing to w as the slog default. A nil w
// means stderr.
func SetupLogger(w io.Writer, enabled bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := NewLogger(w, enabled)
	slog.SetDefault(logger)
	return logger
}

func maskSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, Mask(a.Value.String()))
	}
	return a
}

// RedactHeaders returns a copy of h that is safe to log.
func RedactHeaders(h header.Set) header.Set {
	out := h.Clone()
	if v, ok := out.Lookup(header.Authorization); ok {
		out.Set(header.Authorization, Mask(v))
	}
	return out
}

// Mask keeps an auth scheme prefix such as "Bearer" and hides the rest.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if scheme, _, ok := strings.Cut(v, " "); ok {
		return scheme + " ****"
	}
	return "****"
}
