// Package resolve matches user-typed names, such as profiles, commands and
// flags, against the known ones.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// maxDistance bounds the edit distance of a typo suggestion.
const maxDistance = 3

var (
	ErrEmptyQuery   = errors.New("empty name")
	ErrNoCandidates = errors.New("no names to match against")
)

// AmbiguousError indicates several names matched equally well.
type AmbiguousError struct {
	Query   string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous name %q, candidates: %s", e.Query, strings.Join(e.Matches, ", "))
}

// NotFoundError indicates nothing matched. Suggestion may be empty.
type NotFoundError struct {
	Query      string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("unknown name %q", e.Query)
	}
	return fmt.Sprintf("unknown name %q, did you mean %q?", e.Query, e.Suggestion)
}

type lowered []string

func (s lowered) String(i int) string { return strings.ToLower(s[i]) }
func (s lowered) Len() int            { return len(s) }

// Match resolves query to one of names. An exact case-insensitive hit wins;
// otherwise the best fuzzy match is used when it is unique.
func Match(query string, names []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(names) == 0 {
		return "", ErrNoCandidates
	}
	for _, n := range names {
		if strings.EqualFold(n, query) {
			return n, nil
		}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), lowered(names))
	switch {
	case len(results) == 0:
		return "", &NotFoundError{Query: query, Suggestion: Suggest(query, names)}
	case len(results) > 1 && results[0].Score == results[1].Score:
		return "", &AmbiguousError{Query: query, Matches: Rank(query, names, 5)}
	}
	return names[results[0].Index], nil
}

// Rank returns up to limit fuzzy matches, best first.
func Rank(query string, names []string, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" || len(names) == 0 || limit <= 0 {
		return nil
	}
	results := fuzzy.FindFrom(strings.ToLower(query), lowered(names))
	if len(results) > limit {
		results = results[:limit]
	}
	var out []string
	for _, r := range results {
		out = append(out, names[r.Index])
	}
	return out
}

// Suggest returns the name closest to a mistyped query, or "" when nothing
// is within a few edits. Leading dashes are ignored so flags compare by name.
func Suggest(query string, names []string) string {
	q := strings.ToLower(strings.TrimLeft(query, "-"))
	if q == "" {
		return ""
	}
	best, bestDist := "", maxDistance+1
	for _, n := range names {
		cand := strings.ToLower(strings.TrimLeft(n, "-"))
		if cand == q {
			return n
		}
		if d := distance(q, cand); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// distance is the Levenshtein distance over bytes.
func distance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min(row[j]+1, row[j-1]+1, diag+cost)
			diag = row[j]
			row[j] = next
		}
	}
	return row[len(b)]
}
