package cmd

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apibean/apibean-cli/internal/config"
	"github.com/apibean/apibean-cli/internal/header"
)

func TestRequest_UsesSessionAndAccount(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/users", jsonResponse(200, `{"items":[{"id":1}]}`))
	server := newServer(t, h)

	env.mustRun("session", "set", "--base-url", server.URL, "-H", "Accept: application/json")
	env.mustRun("account", "set", "--token", "tok")

	res := env.mustRun("get", "/users")
	if res.stdout != `{"items":[{"id":1}]}` {
		t.Errorf("stdout = %q", res.stdout)
	}

	req := h.last(t)
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if req.Header.Get(header.RequestID) == "" {
		t.Error("expected a request id")
	}
}

func TestRequest_FreshRequestIDPerCall(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/", jsonResponse(200, `{}`))
	server := newServer(t, h)

	env.mustRun("get", server.URL+"/", "-H", "X-Request-Id: mine")
	first := h.last(t).Header.Get(header.RequestID)
	env.mustRun("get", server.URL+"/")
	second := h.last(t).Header.Get(header.RequestID)

	if first == "" || first == "mine" {
		t.Errorf("caller request id must be replaced, got %q", first)
	}
	if first == second {
		t.Error("each request needs its own id")
	}
}

func TestRequest_TokenFlagOverrides(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/me", jsonResponse(200, `{}`))
	server := newServer(t, h)
	env.mustRun("account", "set", "--token", "stored")

	env.mustRun("get", server.URL+"/me", "--token", "other")
	if got := h.last(t).Header.Get("Authorization"); got != "Bearer other" {
		t.Errorf("Authorization = %q", got)
	}

	env.mustRun("get", server.URL+"/me", "--token", "")
	if got := h.last(t).Header.Get("Authorization"); got != "" {
		t.Errorf("empty --token should disable auth, got %q", got)
	}

	env.mustRun("get", server.URL+"/me", "-H", "Authorization: Basic abc")
	if got := h.last(t).Header.Get("Authorization"); got != "Basic abc" {
		t.Errorf("explicit Authorization must win, got %q", got)
	}
}

func TestRequest_EnvTokenAndBaseURL(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/v1/ping", jsonResponse(200, `{}`))
	server := newServer(t, h)
	t.Setenv(config.EnvBaseURL, server.URL+"/v1")
	t.Setenv(config.EnvAccessToken, "from-env")

	env.mustRun("get", "ping")
	if got := h.last(t).Header.Get("Authorization"); got != "Bearer from-env" {
		t.Errorf("Authorization = %q", got)
	}

	// A stored base URL wins over the configured default.
	other := newRouteHandler().On("GET", "/ping", jsonResponse(200, `{}`))
	otherServer := newServer(t, other)
	env.mustRun("session", "set", "--base-url", otherServer.URL)
	env.mustRun("get", "ping")
	if other.last(t).URL.Path != "/ping" {
		t.Error("stored base URL should be used")
	}
}

func TestRequest_BaseURLFlag(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/api/items", jsonResponse(200, `[]`))
	server := newServer(t, h)
	env.mustRun("session", "set", "--base-url", "http://"+closedAddr(t))

	env.mustRun("get", "items", "--base-url", server.URL+"/api/")
	if h.last(t).URL.Path != "/api/items" {
		t.Errorf("path = %q", h.last(t).URL.Path)
	}
}

func TestRequest_PostBody(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("POST", "/users", jsonResponse(201, `{"id":7}`))
	server := newServer(t, h)

	env.mustRun("post", server.URL+"/users", "-d", `{"name":"ann"}`)
	if got := h.last(t).Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if h.bodies[len(h.bodies)-1] != `{"name":"ann"}` {
		t.Errorf("body = %q", h.bodies[len(h.bodies)-1])
	}

	res := env.runWithStdin("name=bob", "request", "post", server.URL+"/users", "-d", "@-", "--content-type", "application/x-www-form-urlencoded")
	if res.err != nil {
		t.Fatal(res.err)
	}
	if got := h.last(t).Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got)
	}
	if h.bodies[len(h.bodies)-1] != "name=bob" {
		t.Errorf("stdin body = %q", h.bodies[len(h.bodies)-1])
	}

	path := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o600); err != nil {
		t.Fatal(err)
	}
	env.mustRun("put", server.URL+"/users", "-d", "@"+path)
	if h.last(t).Method != http.MethodPut || h.bodies[len(h.bodies)-1] != "plain text" {
		t.Error("file body not sent")
	}
	if got := h.last(t).Header.Get("Content-Type"); got != "" {
		t.Errorf("non-JSON body should not get a content type, got %q", got)
	}
}

func TestRequest_QueryParams(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/search", jsonResponse(200, `[]`))
	server := newServer(t, h)

	env.mustRun("get", server.URL+"/search?sort=asc", "--query", "q=go lang", "--query", "page=2")
	q := h.last(t).URL.Query()
	if q.Get("q") != "go lang" || q.Get("page") != "2" || q.Get("sort") != "asc" {
		t.Errorf("query = %v", q)
	}

	res := env.run("get", server.URL+"/search", "--query", "novalue")
	if res.err == nil || ExitCode(res.err) != exitUsage {
		t.Errorf("expected usage error, got %v", res.err)
	}
}

func TestRequest_InvalidHeader(t *testing.T) {
	env := setupTestEnv(t)
	res := env.run("get", "http://example.invalid/", "-H", "no-colon")
	if res.err == nil || !strings.Contains(res.stderr, "invalid header") {
		t.Fatalf("expected invalid header error, got %v / %q", res.err, res.stderr)
	}
	if ExitCode(res.err) != exitUsage {
		t.Errorf("exit code = %d", ExitCode(res.err))
	}
}

func TestRequest_JQAndJSONOutput(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/users", jsonResponse(200, `{"items":[{"id":1,"name":"ann"},{"id":2,"name":"bob"}]}`))
	server := newServer(t, h)

	res := env.mustRun("get", server.URL+"/users", "--jq", ".items | map(.name)", "--compact-json")
	if strings.TrimSpace(res.stdout) != `["ann","bob"]` {
		t.Errorf("jq output = %q", res.stdout)
	}

	res = env.mustRun("get", server.URL+"/users", "-o", "json")
	view := decodeJSON(t, res.stdout)
	if view["status"] != float64(200) || view["request_id"] == "" {
		t.Errorf("unexpected view %v", view)
	}
	body, ok := view["body"].(map[string]any)
	if !ok || len(body["items"].([]any)) != 2 {
		t.Errorf("body not decoded: %v", view["body"])
	}

	res = env.mustRun("get", server.URL+"/users", "-o", "json", "--jq", ".status")
	if strings.TrimSpace(res.stdout) != "200" {
		t.Errorf("jq over json view = %q", res.stdout)
	}
}

func TestRequest_Include(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})
	server := newServer(t, h)

	res := env.mustRun("get", server.URL+"/", "-i")
	if !strings.HasPrefix(res.stdout, "HTTP/1.1 202 Accepted\n") {
		t.Errorf("missing status line: %q", res.stdout)
	}
	if !strings.Contains(res.stdout, "X-Test: yes\n") || !strings.HasSuffix(res.stdout, "\n\nok") {
		t.Errorf("unexpected output %q", res.stdout)
	}
}

func TestRequest_ErrorStatusIsNotAnError(t *testing.T) {
	env := setupTestEnv(t)
	server := newServer(t, newRouteHandler())

	res := env.mustRun("get", server.URL+"/missing")
	if !strings.Contains(res.stdout, "404 page not found") {
		t.Errorf("stdout = %q", res.stdout)
	}

	res = env.run("get", server.URL+"/missing", "--fail")
	if !errors.Is(res.err, errAlreadyHandled) || ExitCode(res.err) != exitGeneric {
		t.Fatalf("expected handled failure, got %v", res.err)
	}
	if !strings.Contains(res.stderr, "HTTP 404 Not Found") || !strings.Contains(res.stderr, "Request ID: ") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestRequest_ConnectionRefused(t *testing.T) {
	env := setupTestEnv(t)
	target := "http://" + closedAddr(t) + "/"

	res := env.run("get", target)
	if res.err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(res.err) != exitNetwork {
		t.Errorf("exit code = %d, want %d", ExitCode(res.err), exitNetwork)
	}
	if !strings.Contains(res.stderr, "Cannot connect to") || !strings.Contains(res.stderr, "connection_failed") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestRequest_PresentErrors(t *testing.T) {
	env := setupTestEnv(t)
	target := "http://" + closedAddr(t) + "/"

	res := env.mustRun("get", target, "--present-errors", "connection_failed")
	view := decodeJSON(t, res.stdout)
	errObj, ok := view["error"].(map[string]any)
	if !ok || errObj["code"] != "connection_failed" {
		t.Fatalf("unexpected presented error %v", view)
	}
	if view["request_id"] == "" {
		t.Error("presented error should carry the request id")
	}

	res = env.run("get", target, "--present-errors", "read_timeout")
	if res.err == nil {
		t.Error("non-presented codes must still fail")
	}

	res = env.run("get", target, "--present-errors", "teapot")
	if res.err == nil || !strings.Contains(res.stderr, "invalid present_errors code") {
		t.Errorf("expected validation error, got %v", res.err)
	}

	t.Setenv(config.EnvPresentErrors, "all")
	env.mustRun("get", target)
}

func TestRequest_Timeout(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	server := newServer(t, h)

	res := env.run("get", server.URL+"/slow", "--timeout", "50ms")
	if res.err == nil {
		t.Fatal("expected timeout")
	}
	if ExitCode(res.err) != exitTimeout {
		t.Errorf("exit code = %d, want %d", ExitCode(res.err), exitTimeout)
	}
	if !strings.Contains(res.stderr, "timed out after 0.05(s)") {
		t.Errorf("stderr = %q", res.stderr)
	}
	if !strings.Contains(res.stderr, "--timeout") {
		t.Errorf("expected timeout suggestion: %q", res.stderr)
	}

	res = env.run("get", server.URL+"/slow", "--timeout=-1s")
	if res.err == nil || ExitCode(res.err) != exitUsage {
		t.Errorf("negative timeout should be a usage error, got %v", res.err)
	}
}

func TestRequest_ConfigFileDefaults(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("GET", "/v2/things", jsonResponse(200, `{}`))
	server := newServer(t, h)

	cfg := "request:\n  base_url: " + server.URL + "/v2\n  headers:\n    X-Client: apibean-test\n"
	if err := os.WriteFile(filepath.Join(env.dir, "config.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	env.mustRun("get", "things")
	if got := h.last(t).Header.Get("X-Client"); got != "apibean-test" {
		t.Errorf("X-Client = %q", got)
	}

	// Request defaults are never written back to the session store.
	res := env.mustRun("session", "show", "-o", "json")
	if view := decodeJSON(t, res.stdout); view["base_url"] != nil {
		t.Errorf("config defaults leaked into the store: %v", view)
	}
}

func TestPrepare(t *testing.T) {
	env := setupTestEnv(t)
	env.mustRun("session", "set", "--base-url", "https://api.example.com/v1")
	env.mustRun("account", "set", "--token", "tok")

	res := env.mustRun("prepare", "post", "users", "-d", `{"a":1}`, "--query", "dry=1", "--timeout", "3s")
	desc := decodeJSON(t, res.stdout)
	if desc["method"] != "POST" || desc["url"] != "https://api.example.com/v1/users" {
		t.Errorf("unexpected descriptor %v", desc)
	}
	headers, _ := desc["headers"].(map[string]any)
	if headers["Authorization"] != "Bearer tok" || headers[header.RequestID] == nil {
		t.Errorf("unexpected headers %v", desc["headers"])
	}
	if desc["body"] != `{"a":1}` || desc["content_type"] != "application/json" {
		t.Errorf("unexpected body %v", desc)
	}
}

func TestVerbCommandsExist(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler()
	for _, m := range verbMethods {
		h.On(m, "/x", jsonResponse(200, ""))
	}
	server := newServer(t, h)

	for _, m := range verbMethods {
		env.mustRun(strings.ToLower(m), server.URL+"/x")
		if got := h.last(t).Method; got != m {
			t.Errorf("%s sent %s", m, got)
		}
	}
}
