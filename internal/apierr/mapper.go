package apierr

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"
)

// DefaultTimeout is reported in timeout messages when the caller did not
// configure one.
const DefaultTimeout = 5 * time.Second

// UnknownURL stands in for the URL when the failure does not carry one.
const UnknownURL = "<unknown>"

// Map classifies a transport failure. timeout is the value the caller
// configured for the request; zero means none was given.
//
//   - failures while dialing (refused, unreachable, DNS) become ConnectionError
//   - timeouts after the connection was made become ReqTimeoutError
//   - anything else becomes a TransportError carrying err's text
//
// A dial that fails with its own timeout (a *net.OpError with Op "dial")
// falls into the last group. A context deadline that expires while dialing
// carries no dial error, so a request timeout always reports ReqTimeoutError,
// whichever phase it hit.
func Map(err error, timeout time.Duration) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	u := FailedURL(err)

	if isConnectFailure(err) {
		return NewConnectionError(Params{
			Data:  map[string]any{"url": u},
			Cause: err,
		})
	}

	if isReadTimeout(err) {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		return NewTimeoutError(Params{
			Data:  map[string]any{"url": u, "timeout": timeout},
			Cause: err,
		})
	}

	return NewTransportError(Params{
		Message: err.Error(),
		Cause:   err,
	})
}

// FailedURL returns the URL of the request that produced err.
func FailedURL(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.URL != "" {
		return urlErr.URL
	}
	return UnknownURL
}

func dialError(err error) (*net.OpError, bool) {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return opErr, true
	}
	return nil, false
}

func isConnectFailure(err error) bool {
	if opErr, ok := dialError(err); ok {
		return !opErr.Timeout()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsTimeout
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

func isReadTimeout(err error) bool {
	if _, ok := dialError(err); ok {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
