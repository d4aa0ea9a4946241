package cmd

import (
	"strings"
	"testing"
)

func TestDryRun_RequestIsNotSent(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler().On("POST", "/users", jsonResponse(201, `{}`))
	server := newServer(t, h)
	env.mustRun("account", "set", "--token", "secret-token")

	res := env.mustRun("--dry-run", "post", server.URL+"/users", "-d", `{"a":1}`, "--query", "x=1")
	if len(h.requests) != 0 {
		t.Fatal("dry-run sent the request")
	}
	for _, want := range []string{
		"[DRY-RUN] Would send POST " + server.URL + "/users?x=1",
		"Authorization: Bearer ****",
		"Content-Type: application/json",
		"Body: 7 bytes",
		"Authorization header sent over plain http",
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, "secret-token") {
		t.Error("dry-run output leaked the token")
	}
}

func TestDryRun_StoreWritesArePreviewed(t *testing.T) {
	env := setupTestEnv(t)
	env.mustRun("session", "set", "--base-url", "https://kept.example.com")

	res := env.mustRun("--dry-run", "session", "set", "--base-url", "https://new.example.com", "-H", "Accept: text/plain")
	if !strings.Contains(res.stdout, "[DRY-RUN] Would save session store") ||
		!strings.Contains(res.stdout, "base_url: https://new.example.com") ||
		!strings.Contains(res.stdout, "headers.Accept: text/plain") {
		t.Errorf("stdout = %q", res.stdout)
	}

	view := decodeJSON(t, env.mustRun("session", "show", "-o", "json").stdout)
	if view["base_url"] != "https://kept.example.com" {
		t.Errorf("dry-run persisted: %v", view)
	}
}

func TestDryRun_BatchJSON(t *testing.T) {
	env := setupTestEnv(t)
	h := newRouteHandler()
	server := newServer(t, h)
	path := writeBatchFile(t, env.dir, "- url: "+server.URL+"/a\n- {method: delete, url: "+server.URL+"/b}\n")

	res := env.mustRun("--dry-run", "batch", path, "-o", "json", "--jq", "map(.operation)", "--compact-json")
	if strings.TrimSpace(res.stdout) != `["send GET","send DELETE"]` {
		t.Errorf("stdout = %q", res.stdout)
	}
	if len(h.requests) != 0 {
		t.Error("dry-run batch sent requests")
	}
}
