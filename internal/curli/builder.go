package curli

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/store"
)

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// canonicalHeaders are collapsed to one entry each, first occurrence wins.
var canonicalHeaders = []string{header.RequestID, header.Authorization}

// Builder resolves call-site options against the session and account
// stores. It performs no I/O.
type Builder struct {
	Session      *store.Store
	Account      *store.Store
	NewRequestID func() string
}

// Build produces the request descriptor for method and rawURL.
//
// A relative rawURL is joined to opts.BaseURL, or to the session base URL
// when no override is given; without any base it is kept as is. Headers are
// layered as session defaults, then opts.Headers, then a bearer token unless
// an Authorization header is already present, then a fresh request id that
// replaces any existing one.
func (b *Builder) Build(method, rawURL string, opts Options) Descriptor {
	return Descriptor{
		Method:      strings.ToUpper(method),
		URL:         b.resolveURL(rawURL, opts.BaseURL),
		Headers:     b.buildHeaders(opts),
		Query:       cloneValues(opts.Query),
		Body:        bytes.Clone(opts.Body),
		ContentType: opts.ContentType,
		Forwarded:   forward(opts),
	}
}

func (b *Builder) resolveURL(rawURL string, override *string) string {
	if IsAbsoluteURL(rawURL) {
		return rawURL
	}
	var base string
	if override != nil {
		base = *override
	} else if b.Session != nil {
		base = b.Session.String(store.KeyBaseURL)
	}
	if base == "" {
		return rawURL
	}
	return JoinURL(base, rawURL)
}

func (b *Builder) buildHeaders(opts Options) header.Set {
	var merged header.Set
	if b.Session != nil {
		if defaults, ok := b.Session.Headers(); ok {
			merged = defaults.Normalize(canonicalHeaders...)
		}
	}
	merged.Merge(opts.Headers.Normalize(canonicalHeaders...))
	merged = merged.Normalize(canonicalHeaders...)

	if token := b.accessToken(opts.AccessToken); token != "" {
		merged.Prepend(header.Authorization, "Bearer "+token)
	}

	id := b.requestID()
	if merged.Has(header.RequestID) {
		merged.Set(header.RequestID, id)
	} else {
		merged.Prepend(header.RequestID, id)
	}
	return merged
}

func (b *Builder) accessToken(override *string) string {
	if override != nil {
		return *override
	}
	if b.Account == nil {
		return ""
	}
	return b.Account.String(store.KeyAccessToken)
}

func (b *Builder) requestID() string {
	if b.NewRequestID != nil {
		return b.NewRequestID()
	}
	return uuid.NewString()
}

// IsAbsoluteURL reports whether u starts with a scheme such as https://.
func IsAbsoluteURL(u string) bool {
	return schemePrefix.MatchString(u)
}

// JoinURL joins base and rel with exactly one slash between them.
func JoinURL(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}
