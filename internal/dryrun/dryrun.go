// Package dryrun carries the dry-run switch and renders previews of what a
// command would have done.
package dryrun

import (
	"context"
	"fmt"
	"io"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Detail is one labelled line of a preview.
type Detail struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Preview describes an operation that was not carried out.
type Preview struct {
	Operation   string   `json:"operation"`
	Resource    string   `json:"resource"`
	Description string   `json:"description,omitempty"`
	Details     []Detail `json:"details,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Add appends a detail line and returns p.
func (p *Preview) Add(name, value string) *Preview {
	p.Details = append(p.Details, Detail{Name: name, Value: value})
	return p
}

// Warn appends a warning and returns p.
func (p *Preview) Warn(format string, args ...any) *Preview {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
	return p
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\n[DRY-RUN] Would %s %s\n", p.Operation, p.Resource)
	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")

	if p.Description != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", p.Description)
	}

	if len(p.Details) > 0 {
		for _, d := range p.Details {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", d.Name, d.Value)
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}
