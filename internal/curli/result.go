package curli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/store"
)

// Response is a successful transport exchange, whatever its status code. It
// carries the stores that were in effect and the forwarded options.
type Response struct {
	*http.Response

	Session   *store.Store
	Account   *store.Store
	Forwarded Forwarded
	RequestID string
}

// Bytes reads and closes the body.
func (r *Response) Bytes() ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// JSON decodes the body into v and closes it.
func (r *Response) JSON(v any) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Close releases the body.
func (r *Response) Close() error {
	if r == nil || r.Response == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// ErrorValue is a transport failure handed back as data because the error
// presenter chose to present it.
type ErrorValue struct {
	Err       *apierr.Error `json:"error"`
	Forwarded Forwarded     `json:"forwarded"`
	RequestID string        `json:"request_id,omitempty"`
}

func (e *ErrorValue) Error() string { return e.Err.Error() }

func (e *ErrorValue) Unwrap() error { return e.Err }

// Result is the outcome of a dispatched request. Exactly one of Response
// and Err is set.
type Result struct {
	Response *Response
	Err      *ErrorValue
}

// OK reports whether the request produced a response.
func (r *Result) OK() bool { return r != nil && r.Response != nil }

// Unwrap returns the response, or the presented failure as error.
func (r *Result) Unwrap() (*Response, error) {
	switch {
	case r == nil:
		return nil, errors.New("nil result")
	case r.Err != nil:
		return nil, r.Err
	default:
		return r.Response, nil
	}
}

// MustResponse returns the response and panics on a presented failure.
func (r *Result) MustResponse() *Response {
	resp, err := r.Unwrap()
	if err != nil {
		panic(err)
	}
	return resp
}
