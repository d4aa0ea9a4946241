package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/debug"
	"github.com/apibean/apibean-cli/internal/dryrun"
	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/iocontext"
	"github.com/apibean/apibean-cli/internal/outfmt"
)

// batchItem is one request of a batch file.
type batchItem struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	// Body is sent as is when it is a string and JSON-encoded otherwise.
	Body    any           `yaml:"body"`
	Timeout time.Duration `yaml:"timeout"`
}

// batchResult is one output line of a batch run.
type batchResult struct {
	Index     int           `json:"index"`
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	Status    int           `json:"status,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Body      any           `json:"body,omitempty"`
	Error     *apierr.Error `json:"error,omitempty"`
	// Failure holds errors raised before the request was sent.
	Failure string `json:"failure,omitempty"`
}

func (r batchResult) failed() bool { return r.Error != nil || r.Failure != "" }

func newBatchCmd() *cobra.Command {
	var (
		concurrency int64
		progress    bool
	)
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Send the requests listed in a YAML file concurrently",
		Long: `Send every request of a YAML list concurrently and print one JSON line per
request, in file order. Transport failures are reported in the "error" field
of their line; the command exits non-zero when any request failed.

Each item accepts method, url, headers, query, body and timeout. FILE may be
- to read stdin. With --progress or --debug a summary of responses, transport
failures and time spent in requests follows the results on stderr.`,
		Example: `  apibean batch requests.yaml --concurrency 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			streams := iocontext.GetIO(ctx)

			arg := args[0]
			if !strings.HasPrefix(arg, "@") {
				arg = "@" + arg
			}
			data, err := streams.ReadArg(arg)
			if err != nil {
				return err
			}
			items, err := parseBatch(data)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			client := a.requestClient(curli.AlwaysPresent)
			if dryrun.IsEnabled(ctx) {
				return previewBatch(ctx, cmd, client, a, items)
			}
			results, done := runBulkOperation(ctx, len(items), concurrency, progress, cmd.ErrOrStderr(),
				func(ctx context.Context, i int) batchResult {
					return sendBatchItem(ctx, client, a, i, items[i])
				})

			w := cmd.OutOrStdout()
			query := outfmt.QueryFromContext(ctx)
			var failed []batchResult
			for i, r := range results {
				if !done[i] {
					r = batchResult{Index: i, Method: items[i].Method, URL: items[i].URL, Failure: "cancelled"}
				}
				line, err := outfmt.Filter(r, query)
				if err != nil {
					return err
				}
				if err := outfmt.WriteJSON(w, line, true); err != nil {
					return err
				}
				if r.failed() {
					failed = append(failed, r)
				}
			}

			if progress || debug.IsEnabled(ctx) {
				if s, err := a.summary(); err == nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Sent %d requests: %d responses, %d transport failures, %s in requests\n",
						len(items), s.Responses, s.Failures, s.Duration.Round(time.Millisecond))
				}
			}
			if len(failed) > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d requests failed\n", len(failed), len(items))
				return &handledError{
					err:      fmt.Errorf("%d of %d requests failed", len(failed), len(items)),
					exitCode: batchExitCode(failed),
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&concurrency, "concurrency", "c", DefaultConcurrency, "Maximum requests in flight")
	cmd.Flags().BoolVar(&progress, "progress", false, "Report progress on stderr")
	return cmd
}

func parseBatch(data []byte) ([]batchItem, error) {
	var items []batchItem
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	for i := range items {
		if strings.TrimSpace(items[i].URL) == "" {
			return nil, fmt.Errorf("batch item %d: url is required", i)
		}
		if items[i].Method == "" {
			items[i].Method = http.MethodGet
		}
		items[i].Method = strings.ToUpper(items[i].Method)
		if items[i].Timeout < 0 {
			return nil, fmt.Errorf("batch item %d: timeout must be >= 0", i)
		}
	}
	return items, nil
}

func previewBatch(ctx context.Context, cmd *cobra.Command, client *curli.Client, a *app, items []batchItem) error {
	previews := make([]*dryrun.Preview, 0, len(items))
	for i, it := range items {
		opts, err := it.options(a)
		if err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
		p, err := client.Prepare().Request(ctx, it.Method, it.URL, opts)
		if err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
		previews = append(previews, requestPreview(p.Descriptor))
	}
	return writePreviews(ctx, cmd, previews...)
}

func (it batchItem) options(a *app) (curli.Options, error) {
	opts := curli.Options{
		Headers: header.FromMap(it.Headers),
		Timeout: a.cfg.Request.Timeout,
	}
	if it.Timeout > 0 {
		opts.Timeout = it.Timeout
	}
	if a.cfg.Request.AccessToken != "" {
		opts.AccessToken = curli.String(a.cfg.Request.AccessToken)
	}
	if len(it.Query) > 0 {
		opts.Query = url.Values{}
		for k, v := range it.Query {
			opts.Query.Set(k, v)
		}
	}
	switch body := it.Body.(type) {
	case nil:
	case string:
		opts.Body = []byte(body)
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return opts, fmt.Errorf("failed to encode body: %w", err)
		}
		opts.Body = encoded
		opts.ContentType = "application/json"
	}
	return opts, nil
}

func sendBatchItem(ctx context.Context, client *curli.Client, a *app, i int, it batchItem) batchResult {
	result := batchResult{Index: i, Method: it.Method, URL: it.URL}

	opts, err := it.options(a)
	if err != nil {
		result.Failure = err.Error()
		return result
	}

	res, err := client.Request(ctx, it.Method, it.URL, opts)
	if err != nil {
		result.Failure = err.Error()
		return result
	}
	if res.Err != nil {
		result.Error = res.Err.Err
		result.RequestID = res.Err.RequestID
		return result
	}

	resp := res.Response
	result.Status = resp.StatusCode
	result.RequestID = resp.RequestID
	body, err := resp.Bytes()
	if err != nil {
		result.Failure = err.Error()
		return result
	}
	if len(body) > 0 {
		var decoded any
		if json.Unmarshal(body, &decoded) == nil {
			result.Body = decoded
		} else {
			result.Body = string(body)
		}
	}
	return result
}

// batchExitCode returns exitTimeout when every transport failure timed out
// and exitNetwork when any other transport failure happened.
func batchExitCode(failed []batchResult) int {
	timeouts, transport := 0, 0
	for _, r := range failed {
		if r.Error == nil {
			continue
		}
		transport++
		if r.Error.Code == apierr.CodeTimeout {
			timeouts++
		}
	}
	switch {
	case transport > 0 && timeouts == transport:
		return exitTimeout
	case transport > 0:
		return exitNetwork
	default:
		return exitGeneric
	}
}
