// Package filter runs jq expressions over decoded JSON response bodies.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// envelopeKeys are the object keys probed when a root-array query is run
// against an object, e.g. `.[] | .id` over {"items": [...]}.
var envelopeKeys = []string{"items", "data", "results"}

// Query is a compiled jq expression. It is safe for concurrent use.
type Query struct {
	expr string
	code *gojq.Code
}

// NormalizeExpression undoes shell escaping that breaks jq operators. Zsh
// escapes ! to \! even inside single quotes, which turns != into \!=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(strings.TrimSpace(expr), `\!`, `!`)
}

// Compile parses and compiles expr. An empty expression yields a nil Query,
// which passes data through unchanged.
func Compile(expr string) (*Query, error) {
	expr = NormalizeExpression(expr)
	if expr == "" {
		return nil, nil
	}
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return &Query{expr: expr, code: code}, nil
}

// String returns the normalized expression.
func (q *Query) String() string {
	if q == nil {
		return ""
	}
	return q.expr
}

// Run applies the query. A single result is returned as is; several results
// are returned as a slice.
func (q *Query) Run(data any) (any, error) {
	if q == nil {
		return data, nil
	}
	results, err := q.collect(data)
	if err != nil {
		inner, ok := envelope(data, q.expr, err)
		if !ok {
			return nil, err
		}
		if results, err = q.collect(inner); err != nil {
			return nil, err
		}
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// RunJSON decodes body and applies the query.
func (q *Query) RunJSON(body []byte) (any, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return q.Run(data)
}

func (q *Query) collect(data any) ([]any, error) {
	iter := q.code.Run(data)
	var out []any
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		out = append(out, v)
	}
}

func envelope(data any, expr string, runErr error) (any, bool) {
	if !strings.Contains(runErr.Error(), "expected an object but got: array") &&
		!strings.Contains(runErr.Error(), "cannot iterate over") {
		return nil, false
	}
	if !strings.HasPrefix(expr, ".[]") && !strings.HasPrefix(expr, "[.[]") {
		return nil, false
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range envelopeKeys {
		if items, isList := obj[key].([]any); isList {
			return items, true
		}
	}
	return nil, false
}

// Apply compiles expr and runs it once over data.
func Apply(data any, expr string) (any, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Run(data)
}

// ApplyToJSON filters JSON bytes and returns indented JSON. An empty
// expression returns body unchanged.
func ApplyToJSON(body []byte, expr string) ([]byte, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return body, nil
	}
	result, err := q.RunJSON(body)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}
