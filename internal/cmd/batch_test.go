package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apibean/apibean-cli/internal/apierr"
)

func writeBatchFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		lines = append(lines, decodeJSON(t, line))
	}
	return lines
}

func TestBatch_OrderedResults(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().
		On("GET", "/slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte(`{"n":1}`))
		}).
		On("POST", "/items", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(r.Header.Get("Content-Type")))
		}).
		On("GET", "/fast", jsonResponse(200, `{"n":3}`))
	server := newServer(t, h)
	env.mustRun("session", "set", "--base-url", server.URL)
	env.mustRun("account", "set", "--token", "tok")

	path := writeBatchFile(t, env.dir, `
- url: /slow
- method: post
  url: /items
  body: {name: ann}
- url: /fast
  query: {page: "2"}
`)
	res := env.mustRun("batch", path, "-c", "3")
	lines := decodeLines(t, res.stdout)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", res.stdout)
	}
	for i, line := range lines {
		if line["index"] != float64(i) {
			t.Errorf("line %d has index %v", i, line["index"])
		}
		if line["request_id"] == "" {
			t.Errorf("line %d has no request id", i)
		}
	}
	if lines[0]["url"] != "/slow" || lines[1]["method"] != "POST" {
		t.Errorf("unexpected lines %v", lines)
	}
	if lines[1]["status"] != float64(201) || lines[1]["body"] != "application/json" {
		t.Errorf("post line = %v", lines[1])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.requests {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("%s %s missing auth", r.Method, r.URL.Path)
		}
		if r.URL.Path == "/fast" && r.URL.Query().Get("page") != "2" {
			t.Errorf("query not sent: %s", r.URL.RawQuery)
		}
	}
}

func TestBatch_TransportFailures(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/ok", jsonResponse(200, `{}`))
	server := newServer(t, h)

	path := writeBatchFile(t, env.dir, `
- url: `+server.URL+`/ok
- url: http://`+closedAddr(t)+`/down
`)
	res := env.run("batch", path, "--jq", ".error.code")
	if ExitCode(res.err) != exitNetwork {
		t.Fatalf("exit code = %d, want %d (%v)", ExitCode(res.err), exitNetwork, res.err)
	}
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if len(lines) != 2 || lines[0] != "null" || lines[1] != `"connection_failed"` {
		t.Errorf("stdout = %q", res.stdout)
	}
	if !strings.Contains(res.stderr, "1 of 2 requests failed") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestBatch_ProgressSummary(t *testing.T) {
	env := setupTestEnv(t)
	server := newServer(t, newRouteHandler().On("GET", "/ok", jsonResponse(200, `{}`)))

	path := writeBatchFile(t, env.dir, `
- url: `+server.URL+`/ok
- url: `+server.URL+`/ok
- url: http://`+closedAddr(t)+`/down
`)
	res := env.run("batch", path, "--progress")
	if !strings.Contains(res.stderr, "Sent 3 requests: 2 responses, 1 transport failures, ") {
		t.Errorf("stderr = %q", res.stderr)
	}

	res = env.run("batch", path)
	if strings.Contains(res.stderr, "Sent 3 requests") {
		t.Errorf("summary printed without --progress: %q", res.stderr)
	}
}

func TestBatch_Stdin(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("DELETE", "/items/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := newServer(t, h)

	res := env.runWithStdin("- {method: delete, url: "+server.URL+"/items/1}\n", "batch", "-")
	if res.err != nil {
		t.Fatalf("batch from stdin: %v (%s)", res.err, res.stderr)
	}
	line := decodeJSON(t, strings.TrimSpace(res.stdout))
	if line["status"] != float64(204) || line["body"] != nil {
		t.Errorf("line = %v", line)
	}
}

func TestParseBatch(t *testing.T) {
	items, err := parseBatch([]byte("- url: /a\n- {method: patch, url: /b, timeout: 2s, headers: {X-A: b}}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Method != http.MethodGet || items[1].Method != http.MethodPatch {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Timeout != 2*time.Second || items[1].Headers["X-A"] != "b" {
		t.Errorf("item = %+v", items[1])
	}

	items, err = parseBatch(nil)
	if err != nil || len(items) != 0 {
		t.Errorf("empty file = %v, %v", items, err)
	}

	for name, input := range map[string]string{
		"missing url":      "- method: get\n",
		"unknown field":    "- url: /a\n  verb: get\n",
		"negative timeout": "- url: /a\n  timeout: -1s\n",
		"not a list":       "url: /a\n",
	} {
		if _, err := parseBatch([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBatchExitCode(t *testing.T) {
	timeout := batchResult{Error: apierr.NewTimeoutError(apierr.Params{})}
	conn := batchResult{Error: apierr.NewConnectionError(apierr.Params{})}
	other := batchResult{Failure: "bad"}

	tests := []struct {
		name   string
		failed []batchResult
		want   int
	}{
		{"only timeouts", []batchResult{timeout, timeout}, exitTimeout},
		{"mixed transport", []batchResult{timeout, conn}, exitNetwork},
		{"transport and other", []batchResult{other, conn}, exitNetwork},
		{"no transport", []batchResult{other}, exitGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batchExitCode(tt.failed); got != tt.want {
				t.Errorf("batchExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunBulkOperation(t *testing.T) {
	var inFlight, peak int64
	var errOut bytes.Buffer
	results, done := runBulkOperation(context.Background(), 10, 2, true, &errOut, func(ctx context.Context, i int) int {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return i * i
	})

	for i, r := range results {
		if !done[i] || r != i*i {
			t.Errorf("results[%d] = %d (done %v)", i, r, done[i])
		}
	}
	if peak > 2 {
		t.Errorf("concurrency exceeded: %d", peak)
	}
	if !strings.HasSuffix(errOut.String(), "Processed 10/10\n") {
		t.Errorf("progress = %q", errOut.String())
	}
}

func TestRunBulkOperation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, done := runBulkOperation(ctx, 3, 1, false, nil, func(ctx context.Context, i int) int { return 1 })
	for i, d := range done {
		if d {
			t.Errorf("operation %d ran after cancel", i)
		}
	}
}
