package curli

import (
	"context"
	"net/http"

	"github.com/apibean/apibean-cli/internal/store"
)

// PreparedRequest is a built request that has not been sent.
type PreparedRequest struct {
	Descriptor Descriptor
	Request    *http.Request
	Session    *store.Store
	Account    *store.Store
}

// PreRequest builds the descriptor and the *http.Request without sending
// anything.
func (c *Client) PreRequest(ctx context.Context, method, rawURL string, opts Options) (*PreparedRequest, error) {
	desc := c.builder.Build(method, rawURL, opts)
	req, err := desc.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	return &PreparedRequest{
		Descriptor: desc,
		Request:    req,
		Session:    c.session,
		Account:    c.account,
	}, nil
}

// Preparer mirrors the verb methods of Client but returns prepared requests.
type Preparer struct {
	c *Client
}

// Prepare returns the preparing view of c.
func (c *Client) Prepare() Preparer { return Preparer{c: c} }

// Request prepares a request with an arbitrary method.
func (p Preparer) Request(ctx context.Context, method, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, method, rawURL, opts)
}

func (p Preparer) Get(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodGet, rawURL, opts)
}

func (p Preparer) Head(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodHead, rawURL, opts)
}

func (p Preparer) Options(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodOptions, rawURL, opts)
}

func (p Preparer) Post(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodPost, rawURL, opts)
}

func (p Preparer) Put(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodPut, rawURL, opts)
}

func (p Preparer) Patch(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodPatch, rawURL, opts)
}

func (p Preparer) Delete(ctx context.Context, rawURL string, opts Options) (*PreparedRequest, error) {
	return p.c.PreRequest(ctx, http.MethodDelete, rawURL, opts)
}
