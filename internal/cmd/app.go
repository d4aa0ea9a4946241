package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/apibean/apibean-cli/internal/config"
	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/iocontext"
	"github.com/apibean/apibean-cli/internal/store"
)

// app is the per-invocation state: loaded config and the two stores with
// the backends they persist to.
type app struct {
	cfg     *config.Config
	session *store.Store
	account *store.Store

	sessionBackend store.Backend
	accountBackend store.Backend
	closers        []func() error

	// registry holds the request metrics of this invocation only.
	registry *prometheus.Registry
	metrics  *curli.Metrics
	// tracer is nil unless --trace is set.
	tracer trace.TracerProvider
}

// newHTTPClient is swapped by tests that need a custom transport.
var newHTTPClient = func() curli.Doer { return &http.Client{} }

// openApp loads config, applies the global flag overrides and opens both
// stores.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.SessionBackend != "" {
		cfg.Session.Backend = flags.SessionBackend
	}
	if flags.AccountBackend != "" {
		cfg.Account.Backend = flags.AccountBackend
	}
	if flags.SessionProfile != "" {
		cfg.Session.Profile = flags.SessionProfile
	}
	if flags.AccountProfile != "" {
		cfg.Account.Profile = flags.AccountProfile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.metrics = curli.NewMetrics(a.registry)
	if flags.Trace {
		tp := newTracerProvider(iocontext.GetIO(ctx).ErrOut)
		a.tracer = tp
		a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })
	}
	if a.session, a.sessionBackend, err = a.open(ctx, store.Session, cfg.Session); err != nil {
		_ = a.close()
		return nil, err
	}
	if a.account, a.accountBackend, err = a.open(ctx, store.Account, cfg.Account); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, name string, sc config.StoreConfig) (*store.Store, store.Backend, error) {
	backend, closeFn, err := a.cfg.OpenBackend(ctx, sc.Backend)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, closeFn)

	s, err := store.Open(ctx, name, backend)
	if err != nil {
		return nil, nil, err
	}
	if sc.Profile != "" {
		s.SetProfile(sc.Profile)
	}
	return s, backend, nil
}

// client returns a curli client over the app's stores.
func (a *app) client(presenter curli.ErrorPresenter) *curli.Client {
	return curli.New(newHTTPClient(), a.session, a.account, &curli.Config{
		ErrorPresenter: presenter,
		Logger:         slog.Default(),
		Metrics:        a.metrics,
		TracerProvider: a.tracer,
	})
}

// requestClient is client plus the request defaults from config, applied
// only where the session store has no value of its own. Commands that use it
// must not save the session store.
func (a *app) requestClient(presenter curli.ErrorPresenter) *curli.Client {
	c := a.client(presenter)
	seed := store.Values{}
	if a.cfg.Request.BaseURL != "" {
		seed[store.KeyBaseURL] = a.cfg.Request.BaseURL
	}
	if len(a.cfg.Request.Headers) > 0 {
		seed[store.KeyHeaders] = header.FromMap(a.cfg.Request.Headers)
	}
	return c.Default(seed)
}

// summary totals the requests sent so far in this invocation.
func (a *app) summary() (curli.Summary, error) {
	return curli.Summarize(a.registry)
}

// save persists both stores.
func (a *app) save(ctx context.Context) error {
	return errors.Join(
		store.Persist(ctx, a.session, a.sessionBackend),
		store.Persist(ctx, a.account, a.accountBackend),
	)
}

func (a *app) close() error {
	var errs []error
	for _, fn := range a.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
