// Package curli builds HTTP requests from layered session and account
// configuration and classifies transport failures.
//
// A Client owns two stores. The session store carries the base URL and
// default headers; the account store carries the access token. Each verb
// method builds a Descriptor from the stores and the call-site Options,
// sends it through the Doer and either wraps the response or maps the
// failure to an *apierr.Error.
package curli

import (
	"log/slog"
	"maps"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/apibean/apibean-cli/internal/store"
)

const tracerName = "github.com/apibean/apibean-cli/internal/curli"

// Client is the request engine.
//
// The stores are shared mutable state. Configuration methods (Default,
// InSession, AsAccount) racing with requests on the same Client may see a
// mix of old and new values; use one Client per logical session or guard
// mutate-then-request sequences externally.
type Client struct {
	doer    Doer
	session *store.Store
	account *store.Store
	config  Config
	builder *Builder
	tracer  trace.Tracer
}

// New creates a Client. A nil doer uses a plain *http.Client; nil stores are
// replaced by empty ones.
func New(doer Doer, session, account *store.Store, cfg *Config) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	if session == nil {
		session = store.New(store.Session)
	}
	if account == nil {
		account = store.New(store.Account)
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.ErrorPresenter == nil {
		c.ErrorPresenter = NeverPresent
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	return &Client{
		doer:    doer,
		session: session,
		account: account,
		config:  c,
		builder: &Builder{Session: session, Account: account, NewRequestID: c.NewRequestID},
		tracer:  c.TracerProvider.Tracer(tracerName),
	}
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config { return c.config }

// SetErrorPresenter replaces the presenter. nil restores NeverPresent.
func (c *Client) SetErrorPresenter(p ErrorPresenter) {
	if p == nil {
		p = NeverPresent
	}
	c.config.ErrorPresenter = p
}

// Doer returns the transport.
func (c *Client) Doer() Doer { return c.doer }

// SetDoer swaps the transport.
func (c *Client) SetDoer(d Doer) {
	if d == nil {
		d = &http.Client{}
	}
	c.doer = d
}

// Session returns the session store.
func (c *Client) Session() *store.Store { return c.session }

// Account returns the account store.
func (c *Client) Account() *store.Store { return c.account }

// Builder returns the parameter builder bound to the client's stores.
func (c *Client) Builder() *Builder { return c.builder }

// Default seeds session values that are not set yet.
func (c *Client) Default(values store.Values) *Client {
	c.session.Default(values)
	return c
}

// Globals is the old name of Default.
//
// Deprecated: use Default.
func (c *Client) Globals(values store.Values) *Client {
	c.config.Logger.Warn("curli: Globals is deprecated, use Default")
	return c.Default(values)
}

// AsAccount switches the account profile when profile is non-empty and
// overwrites the given account values.
func (c *Client) AsAccount(profile string, values store.Values) *Client {
	if profile != "" {
		c.account.SetProfile(profile)
	}
	c.account.Update(values)
	return c
}

// InSession switches the session profile when profile is non-empty and
// overwrites the given session values. A base URL is only written when it
// is a non-empty string, so passing an empty one keeps the current value.
func (c *Client) InSession(profile string, values store.Values) *Client {
	if profile != "" {
		c.session.SetProfile(profile)
	}

	values = maps.Clone(values)
	if v, ok := values[store.KeyBaseURL]; ok {
		if s, isString := v.(string); isString && s != "" {
			c.session.Set(store.KeyBaseURL, s)
		}
		delete(values, store.KeyBaseURL)
	}
	c.session.Update(values)
	return c
}
