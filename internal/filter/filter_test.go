package filter

import (
	"bytes"
	"sync"
	"testing"
)

func TestApply_EmptyExpression(t *testing.T) {
	data := map[string]any{"name": "test"}
	result, err := Apply(data, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(map[string]any)["name"] != "test" {
		t.Error("empty expression should return data unchanged")
	}
}

func TestApply_SelectField(t *testing.T) {
	result, err := Apply(map[string]any{"name": "test", "id": 123}, ".name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "test" {
		t.Errorf("expected 'test', got %v", result)
	}
}

func TestApply_MultipleResults(t *testing.T) {
	data := []any{1.0, 2.0}
	result, err := Apply(data, ".[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := result.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected two results, got %#v", result)
	}
}

func TestApply_InvalidExpression(t *testing.T) {
	if _, err := Apply(map[string]any{}, "invalid[[["); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestApply_ShellEscapedNotEqual(t *testing.T) {
	data := []any{
		map[string]any{"status": "open"},
		map[string]any{"status": "closed"},
	}
	result, err := Apply(data, `[.[] | select(.status \!= "open")] | length`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 1 {
		t.Errorf("expected 1, got %v", result)
	}
}

func TestNormalizeExpression(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `.a \!= 1`, want: `.a != 1`},
		{in: "  .name  ", want: ".name"},
		{in: `"\\!"`, want: `"\!"`},
	}
	for _, tt := range tests {
		if got := NormalizeExpression(tt.in); got != tt.want {
			t.Errorf("NormalizeExpression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompile_ReusableAcrossGoroutines(t *testing.T) {
	q, err := Compile(".id")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if q.String() != ".id" {
		t.Errorf("unexpected expression %q", q.String())
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.Run(map[string]any{"id": i})
			if err != nil || got != i {
				t.Errorf("run %d: got %v, %v", i, got, err)
			}
		}()
	}
	wg.Wait()
}

func TestNilQueryPassesThrough(t *testing.T) {
	q, err := Compile("")
	if err != nil || q != nil {
		t.Fatalf("expected nil query, got %v, %v", q, err)
	}
	got, err := q.Run("x")
	if err != nil || got != "x" {
		t.Errorf("expected passthrough, got %v, %v", got, err)
	}
}

func TestRunJSON_InvalidJSON(t *testing.T) {
	q, _ := Compile(".a")
	if _, err := q.RunJSON([]byte("{")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestApplyToJSON(t *testing.T) {
	result, err := ApplyToJSON([]byte(`{"name": "test", "id": 123}`), ".name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(result, []byte(`"test"`)) {
		t.Errorf("unexpected output %s", result)
	}

	original := []byte(`{"name": "test"}`)
	result, err = ApplyToJSON(original, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(original, result) {
		t.Error("empty expression should return original JSON unchanged")
	}

	if _, err := ApplyToJSON([]byte(`{invalid}`), ".name"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestApply_RootArrayQueryUsesEnvelope(t *testing.T) {
	for _, key := range []string{"items", "data", "results"} {
		t.Run(key, func(t *testing.T) {
			data := map[string]any{
				key: []any{
					map[string]any{"id": 1},
					map[string]any{"id": 2},
				},
				"meta": map[string]any{"count": 2},
			}
			result, err := Apply(data, "[.[] | .id]")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids, ok := result.([]any)
			if !ok || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
				t.Fatalf("expected [1 2], got %#v", result)
			}
		})
	}
}

func TestApply_RootArrayQueryWithoutEnvelopeErrors(t *testing.T) {
	data := map[string]any{"list": []any{map[string]any{"id": 1}}}
	if _, err := Apply(data, "[.[] | .id]"); err == nil {
		t.Fatal("expected error without an envelope key")
	}
}
