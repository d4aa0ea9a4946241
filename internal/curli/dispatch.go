package curli

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/debug"
)

// Request builds and sends a request with an arbitrary method.
//
// A transport failure is mapped to an *apierr.Error. When the error
// presenter accepts it the call succeeds with Result.Err set; otherwise the
// mapped error is returned. Errors raised before the request reaches the
// transport, such as an unparsable URL, are returned unmapped.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts Options) (*Result, error) {
	p, err := c.PreRequest(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, p)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodGet, rawURL, opts)
}

// Head sends a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodHead, rawURL, opts)
}

// Options sends an OPTIONS request.
func (c *Client) Options(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodOptions, rawURL, opts)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodPost, rawURL, opts)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodPut, rawURL, opts)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodPatch, rawURL, opts)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.Request(ctx, http.MethodDelete, rawURL, opts)
}

// Send dispatches a prepared request. It can be called more than once for
// the same PreparedRequest; the body is rewound each time.
func (c *Client) Send(ctx context.Context, p *PreparedRequest) (*Result, error) {
	desc := p.Descriptor
	fwd := desc.Forwarded
	reqID := desc.RequestID()

	ctx, span := c.startSpan(ctx, desc)

	var cancel context.CancelFunc = func() {}
	if fwd.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, fwd.Timeout)
	}

	req, err := rewind(p.Request.Clone(ctx))
	if err != nil {
		cancel()
		finishSpan(span, err)
		return nil, err
	}

	if debug.IsEnabled(ctx) {
		c.config.Logger.DebugContext(ctx, "dispatching request",
			"method", desc.Method,
			"url", req.URL.String(),
			"request_id", reqID,
			"timeout", fwd.Timeout,
			"headers", debug.RedactHeaders(desc.Headers).Map(),
		)
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		cancel()
		mapped := apierr.Map(err, fwd.Timeout)
		span.SetAttributes(attribute.String("apibean.error.code", string(mapped.Code)))
		finishSpan(span, mapped)
		c.config.Metrics.observeFailure(desc.Method, mapped.Code, elapsed)

		if debug.IsEnabled(ctx) {
			c.config.Logger.DebugContext(ctx, "request failed",
				"method", desc.Method,
				"request_id", reqID,
				"code", mapped.Code,
				"error", err,
			)
		}

		if c.config.present(mapped) {
			return &Result{Err: &ErrorValue{Err: mapped, Forwarded: fwd, RequestID: reqID}}, nil
		}
		return nil, mapped
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	finishSpan(span, nil)
	c.config.Metrics.observeResponse(desc.Method, resp.StatusCode, elapsed)

	if debug.IsEnabled(ctx) {
		c.config.Logger.DebugContext(ctx, "response received",
			"method", desc.Method,
			"request_id", reqID,
			"status", resp.StatusCode,
			"duration", elapsed,
		)
	}

	return &Result{Response: &Response{
		Response:  resp,
		Session:   p.Session,
		Account:   p.Account,
		Forwarded: fwd,
		RequestID: reqID,
	}}, nil
}

// rewind gives req a fresh body when the original can be replayed.
func rewind(req *http.Request) (*http.Request, error) {
	if req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func (c *Client) startSpan(ctx context.Context, desc Descriptor) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+desc.Method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", desc.Method),
		attribute.String("url.full", desc.URL),
		attribute.String("apibean.request_id", desc.RequestID()),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// cancelOnClose releases the request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
