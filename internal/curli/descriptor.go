package curli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/apibean/apibean-cli/internal/header"
)

// Descriptor is a fully resolved request, ready for the transport.
type Descriptor struct {
	Method      string
	URL         string
	Headers     header.Set
	Query       url.Values
	Body        []byte
	ContentType string
	Forwarded   Forwarded
}

// RequestID returns the generated request id.
func (d Descriptor) RequestID() string {
	return d.Headers.Get(header.RequestID)
}

// FullURL returns URL with Query merged into its query string.
func (d Descriptor) FullURL() (string, error) {
	if len(d.Query) == 0 {
		return d.URL, nil
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", d.URL, err)
	}
	q := u.Query()
	for k, vv := range d.Query {
		for _, v := range vv {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTTPRequest converts the descriptor into an *http.Request bound to ctx.
func (d Descriptor) HTTPRequest(ctx context.Context) (*http.Request, error) {
	target, err := d.FullURL()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = d.Headers.HTTP()
	if d.ContentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", d.ContentType)
	}
	return req, nil
}

// MarshalJSON renders the descriptor for display. Bodies that are valid
// UTF-8 are shown as text.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	out := struct {
		Method      string     `json:"method"`
		URL         string     `json:"url"`
		Headers     header.Set `json:"headers"`
		Query       url.Values `json:"query,omitempty"`
		Body        any        `json:"body,omitempty"`
		ContentType string     `json:"content_type,omitempty"`
		Forwarded   Forwarded  `json:"forwarded"`
	}{
		Method:      d.Method,
		URL:         d.URL,
		Headers:     d.Headers,
		Query:       d.Query,
		ContentType: d.ContentType,
		Forwarded:   d.Forwarded,
	}
	if len(d.Body) > 0 {
		if utf8.Valid(d.Body) {
			out.Body = string(d.Body)
		} else {
			out.Body = d.Body
		}
	}
	return json.Marshal(out)
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vv := range v {
		out[k] = append([]string(nil), vv...)
	}
	return out
}
