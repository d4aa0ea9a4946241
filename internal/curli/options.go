package curli

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/header"
)

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options are the call-site overrides of a single request. Precedence, from
// lowest to highest: session store, Options, generated values (bearer token
// only when no Authorization header exists, request id always).
type Options struct {
	// Headers are merged over the session store's default headers.
	Headers header.Set
	// BaseURL replaces the session base URL when non-nil, even if empty.
	BaseURL *string
	// AccessToken replaces the account token when non-nil. An empty token
	// disables the Authorization header for this call.
	AccessToken *string
	// Timeout is forwarded to the transport and reported in timeout errors.
	Timeout time.Duration

	// Query, Body and ContentType pass through to the request untouched.
	Query       url.Values
	Body        []byte
	ContentType string
}

// String returns a pointer to s, for the optional fields of Options.
func String(s string) *string { return &s }

// Forwarded holds the options that travel alongside a request without
// being part of it. They annotate responses and errors.
type Forwarded struct {
	Timeout time.Duration `json:"timeout,omitempty"`
}

// forward extracts the allow-listed options. Only Timeout qualifies today.
func forward(opts Options) Forwarded {
	return Forwarded{Timeout: opts.Timeout}
}

// ErrorPresenter decides what happens to a mapped transport error. Returning
// true hands the error back as a value in Result; false returns it as error.
type ErrorPresenter func(*apierr.Error) bool

// NeverPresent is the default presenter: every failure is returned as error.
func NeverPresent(*apierr.Error) bool { return false }

// AlwaysPresent turns every failure into a Result value.
func AlwaysPresent(*apierr.Error) bool { return true }

// PresentCodes presents only errors with one of the given codes.
func PresentCodes(codes ...apierr.Code) ErrorPresenter {
	return func(err *apierr.Error) bool {
		return err != nil && slices.Contains(codes, err.Code)
	}
}

// Config tunes a Client. The zero value is usable.
type Config struct {
	// ErrorPresenter defaults to NeverPresent.
	ErrorPresenter ErrorPresenter
	// NewRequestID generates request ids; defaults to random UUIDs.
	NewRequestID func() string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func (c Config) present(err *apierr.Error) bool {
	if c.ErrorPresenter == nil {
		return false
	}
	return c.ErrorPresenter(err)
}
