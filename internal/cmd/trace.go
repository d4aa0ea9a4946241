package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanWriter prints finished spans as one line each.
type spanWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *spanWriter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, span := range spans {
		attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		line := fmt.Sprintf("trace: %s %s status=%s duration=%s",
			span.Name(),
			attrs["url.full"].AsString(),
			span.Status().Code,
			span.EndTime().Sub(span.StartTime()).Round(time.Microsecond),
		)
		if v, ok := attrs["http.response.status_code"]; ok {
			line += fmt.Sprintf(" http_status=%d", v.AsInt64())
		}
		if v, ok := attrs["apibean.error.code"]; ok {
			line += " error=" + v.AsString()
		}
		if v, ok := attrs["apibean.request_id"]; ok {
			line += " request_id=" + v.AsString()
		}
		if _, err := fmt.Fprintln(s.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *spanWriter) Shutdown(context.Context) error { return nil }

// newTracerProvider exports every span synchronously to w.
func newTracerProvider(w io.Writer) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&spanWriter{w: w}),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}
