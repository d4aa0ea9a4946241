package resolve_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/apibean/apibean-cli/internal/resolve"
)

func TestMatch_ExactHit(t *testing.T) {
	got, err := resolve.Match("STAGING", []string{"default", "staging", "staging-eu"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "staging" {
		t.Fatalf("expected staging, got %q", got)
	}
}

func TestMatch_FuzzyHit(t *testing.T) {
	got, err := resolve.Match("prd", []string{"default", "production"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "production" {
		t.Fatalf("expected production, got %q", got)
	}
}

func TestMatch_Ambiguous(t *testing.T) {
	_, err := resolve.Match("stg", []string{"stg-us", "stg-eu"})
	var ae *resolve.AmbiguousError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AmbiguousError, got %T: %v", err, err)
	}
	if len(ae.Matches) != 2 {
		t.Fatalf("expected both candidates, got %v", ae.Matches)
	}
	if !strings.Contains(ae.Error(), "stg-us") {
		t.Fatalf("missing candidate in %q", ae.Error())
	}
}

func TestMatch_NotFoundSuggests(t *testing.T) {
	_, err := resolve.Match("defualt", []string{"default", "prod"})
	var nf *resolve.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
	if nf.Suggestion != "default" {
		t.Fatalf("expected suggestion default, got %q", nf.Suggestion)
	}
	if !strings.Contains(err.Error(), `did you mean "default"?`) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	if _, err := resolve.Match(" ", []string{"a"}); !errors.Is(err, resolve.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := resolve.Match("a", nil); !errors.Is(err, resolve.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestRank(t *testing.T) {
	got := resolve.Rank("s", []string{"session", "account", "staging"}, 1)
	if len(got) != 1 {
		t.Fatalf("expected one result, got %v", got)
	}
	if resolve.Rank("", []string{"a"}, 3) != nil {
		t.Fatal("expected nil for empty query")
	}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		query string
		names []string
		want  string
	}{
		{query: "gte", names: []string{"get", "put", "patch"}, want: "get"},
		{query: "--timout", names: []string{"--timeout", "--token"}, want: "--timeout"},
		{query: "sesion", names: []string{"session", "account"}, want: "session"},
		{query: "zzzzzzzz", names: []string{"get"}, want: ""},
		{query: "--", names: []string{"--get"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := resolve.Suggest(tt.query, tt.names); got != tt.want {
				t.Errorf("Suggest(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
