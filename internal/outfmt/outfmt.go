// Package outfmt renders command output as text tables or JSON.
package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/apibean/apibean-cli/internal/filter"
)

// Mode represents the output format mode
type Mode int

const (
	// Text is the default human-readable output
	Text Mode = iota
	// JSON outputs indented JSON
	JSON
	// JSONL outputs one compact JSON document per line
	JSONL
)

type (
	modeKey    struct{}
	compactKey struct{}
	queryKey   struct{}
)

// Parse parses an output mode string
func Parse(s string) (Mode, error) {
	switch s {
	case "text", "":
		return Text, nil
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	default:
		return Text, fmt.Errorf("invalid output format: %q (use 'text', 'json' or 'jsonl')", s)
	}
}

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case JSON:
		return "json"
	case JSONL:
		return "jsonl"
	default:
		return "text"
	}
}

// WithMode adds the output mode to the context
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeFromContext retrieves the output mode from context
func ModeFromContext(ctx context.Context) Mode {
	if mode, ok := ctx.Value(modeKey{}).(Mode); ok {
		return mode
	}
	return Text
}

// IsJSON reports whether ctx selects JSON or JSONL output.
func IsJSON(ctx context.Context) bool {
	m := ModeFromContext(ctx)
	return m == JSON || m == JSONL
}

// WithCompact forces compact JSON.
func WithCompact(ctx context.Context, compact bool) context.Context {
	return context.WithValue(ctx, compactKey{}, compact)
}

// IsCompact reports whether JSON should be written without indentation.
// JSONL output is always compact.
func IsCompact(ctx context.Context) bool {
	if ModeFromContext(ctx) == JSONL {
		return true
	}
	c, _ := ctx.Value(compactKey{}).(bool)
	return c
}

// WithQuery attaches a compiled jq filter applied to JSON output.
func WithQuery(ctx context.Context, q *filter.Query) context.Context {
	return context.WithValue(ctx, queryKey{}, q)
}

// QueryFromContext returns the attached filter, or nil.
func QueryFromContext(ctx context.Context) *filter.Query {
	q, _ := ctx.Value(queryKey{}).(*filter.Query)
	return q
}

// WriteJSON writes a value as JSON, indented unless compact.
func WriteJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Filter runs q over v. Typed values are round-tripped through JSON first
// so the query sees plain maps and slices.
func Filter(v any, q *filter.Query) (any, error) {
	if q == nil {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return q.RunJSON(data)
}
