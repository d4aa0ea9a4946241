package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/dryrun"
	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/iocontext"
	"github.com/apibean/apibean-cli/internal/outfmt"
)

var verbMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// requestFlags are the per-request options shared by request, the verb
// commands and prepare.
type requestFlags struct {
	headers       []string
	baseURL       string
	token         string
	timeout       time.Duration
	data          string
	contentType   string
	query         []string
	presentErrors []string
	include       bool
	fail          bool
}

func (f *requestFlags) register(cmd *cobra.Command, send bool) {
	fs := cmd.Flags()
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	fs.StringVar(&f.baseURL, "base-url", "", "Base URL for relative paths (overrides the session)")
	fs.StringVar(&f.token, "token", "", "Bearer token (overrides the account; empty disables auth)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (default from config)")
	fs.StringVarP(&f.data, "data", "d", "", "Request body, @file or @- for stdin")
	fs.StringVar(&f.contentType, "content-type", "", "Body content type (default application/json for JSON bodies)")
	fs.StringArrayVar(&f.query, "query", nil, "Query parameter key=value (repeatable)")
	if !send {
		return
	}
	fs.StringSliceVar(&f.presentErrors, "present-errors", nil, "Error codes printed as JSON instead of failing, or all")
	fs.BoolVarP(&f.include, "include", "i", false, "Include status line and response headers")
	fs.BoolVarP(&f.fail, "fail", "f", false, "Exit non-zero on HTTP status >= 400")
}

// options converts the flags into curli options. Overrides apply only
// when the flag was given, so an explicit empty --token disables auth.
func (f *requestFlags) options(cmd *cobra.Command, a *app) (curli.Options, error) {
	var opts curli.Options

	for _, line := range f.headers {
		field, err := header.Parse(line)
		if err != nil {
			return opts, err
		}
		opts.Headers.Add(field.Name, field.Value)
	}

	if cmd.Flags().Changed("base-url") {
		opts.BaseURL = curli.String(f.baseURL)
	}
	switch {
	case cmd.Flags().Changed("token"):
		opts.AccessToken = curli.String(f.token)
	case a.cfg.Request.AccessToken != "":
		opts.AccessToken = curli.String(a.cfg.Request.AccessToken)
	}

	opts.Timeout = a.cfg.Request.Timeout
	if cmd.Flags().Changed("timeout") {
		if f.timeout < 0 {
			return opts, fmt.Errorf("--timeout must be >= 0")
		}
		opts.Timeout = f.timeout
	}

	if len(f.query) > 0 {
		opts.Query = url.Values{}
		for _, kv := range f.query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return opts, fmt.Errorf("invalid query %q: expected key=value", kv)
			}
			opts.Query.Add(k, v)
		}
	}

	if cmd.Flags().Changed("data") {
		body, err := iocontext.GetIO(cmd.Context()).ReadArg(f.data)
		if err != nil {
			return opts, err
		}
		opts.Body = body
		opts.ContentType = f.contentType
		if opts.ContentType == "" && json.Valid(body) {
			opts.ContentType = "application/json"
		}
	}
	return opts, nil
}

// presenter returns the config presenter, or one built from --present-errors.
func (f *requestFlags) presenter(cmd *cobra.Command, a *app) (curli.ErrorPresenter, error) {
	if !cmd.Flags().Changed("present-errors") {
		return a.cfg.Presenter(), nil
	}
	cfg := *a.cfg
	cfg.Request.PresentErrors = f.presentErrors
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.Presenter(), nil
}

func newRequestCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "request METHOD URL",
		Short: "Send a request with any method",
		Long: `Send an HTTP request. Relative URLs are joined to the session base URL,
session headers and the account token are added, and every request gets a
fresh X-Request-Id.`,
		Example: `  apibean request GET /users -H "Accept: application/json"
  apibean request POST /users -d '{"name":"ann"}'
  apibean request PURGE https://cache.example.com/item --present-errors all`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, &f, strings.ToUpper(args[0]), args[1])
		},
	}
	f.register(cmd, true)
	return cmd
}

func newVerbCmd(method string) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " URL",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, &f, method, args[0])
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPrepareCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "prepare METHOD URL",
		Short: "Print the resolved request without sending it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			opts, err := f.options(cmd, a)
			if err != nil {
				return err
			}
			p, err := a.requestClient(nil).Prepare().Request(ctx, strings.ToUpper(args[0]), args[1], opts)
			if err != nil {
				return err
			}
			return outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr()).JSON(p.Descriptor)
		},
	}
	f.register(cmd, false)
	return cmd
}

func runRequest(cmd *cobra.Command, f *requestFlags, method, rawURL string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts, err := f.options(cmd, a)
	if err != nil {
		return err
	}
	presenter, err := f.presenter(cmd, a)
	if err != nil {
		return err
	}

	client := a.requestClient(presenter)
	if dryrun.IsEnabled(ctx) {
		p, err := client.Prepare().Request(ctx, method, rawURL, opts)
		if err != nil {
			return err
		}
		return writePreviews(ctx, cmd, requestPreview(p.Descriptor))
	}

	res, err := client.Request(ctx, method, rawURL, opts)
	if err != nil {
		return err
	}

	out := outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if res.Err != nil {
		return out.JSON(res.Err)
	}

	resp := res.Response
	body, err := resp.Bytes()
	if err != nil {
		return err
	}

	if err := writeResponse(cmd, out, f.include, resp, body); err != nil {
		return err
	}

	if f.fail && resp.StatusCode >= http.StatusBadRequest {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: HTTP %s\nRequest ID: %s\n", resp.Status, resp.RequestID)
		return &handledError{err: fmt.Errorf("HTTP %s", resp.Status), exitCode: exitGeneric}
	}
	return nil
}

// responseView is the JSON rendering of a response for -o json.
type responseView struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	RequestID string            `json:"request_id"`
	TimeoutMS int64             `json:"timeout_ms,omitempty"`
	Body      any               `json:"body,omitempty"`
}

func writeResponse(cmd *cobra.Command, out *outfmt.Formatter, include bool, resp *curli.Response, body []byte) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if outfmt.IsJSON(ctx) {
		view := responseView{
			Status:    resp.StatusCode,
			Headers:   header.FromHTTP(resp.Header).Map(),
			RequestID: resp.RequestID,
			TimeoutMS: resp.Forwarded.Timeout.Milliseconds(),
		}
		if len(body) > 0 {
			var decoded any
			if err := json.Unmarshal(body, &decoded); err == nil {
				view.Body = decoded
			} else {
				view.Body = string(body)
			}
		}
		_, err := out.Output(view)
		return err
	}

	if include {
		_, _ = fmt.Fprintf(w, "%s %s\n", resp.Proto, resp.Status)
		names := make([]string, 0, len(resp.Header))
		for name := range resp.Header {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			for _, v := range resp.Header[name] {
				_, _ = fmt.Fprintf(w, "%s: %s\n", name, v)
			}
		}
		_, _ = fmt.Fprintln(w)
	}

	if q := outfmt.QueryFromContext(ctx); q != nil && len(body) > 0 {
		result, err := q.RunJSON(body)
		if err != nil {
			return err
		}
		return outfmt.WriteJSON(w, result, outfmt.IsCompact(ctx))
	}

	_, err := w.Write(body)
	return err
}
