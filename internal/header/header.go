// Package header provides an ordered header set with case-insensitive names.
//
// Unlike http.Header, a Set remembers insertion order and the literal casing
// of each name, which keeps request construction deterministic and lets
// callers see exactly which headers they configured.
package header

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"sort"
	"strings"
)

// Well-known header names. These casings are canonical: Normalize renames
// any case variant to them.
const (
	RequestID     = "X-Request-Id"
	Authorization = "Authorization"
)

// Field is a single header entry.
type Field struct {
	Name  string
	Value string
}

// Set is an ordered collection of header fields. The zero value is an empty
// set ready to use. Names compare case-insensitively.
type Set struct {
	fields []Field
}

// New builds a set from name/value pairs. It panics on an odd count.
func New(pairs ...string) Set {
	if len(pairs)%2 != 0 {
		panic("header.New: odd number of arguments")
	}
	var s Set
	for i := 0; i < len(pairs); i += 2 {
		s.Add(pairs[i], pairs[i+1])
	}
	return s
}

// FromMap builds a set from a map. Go maps are unordered, so names are
// sorted to keep the result stable.
func FromMap(m map[string]string) Set {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	var s Set
	for _, name := range names {
		s.Add(name, m[name])
	}
	return s
}

// FromHTTP converts an http.Header. Multi-valued names are joined with ", ".
func FromHTTP(h http.Header) Set {
	m := make(map[string]string, len(h))
	for k, vv := range h {
		m[k] = strings.Join(vv, ", ")
	}
	return FromMap(m)
}

// FromValue converts a loosely typed value, such as one read back from a
// configuration store, into a Set. It reports false when v is not a mapping.
// In a map[string]any, numbers and booleans are formatted and other
// non-string values are skipped.
func FromValue(v any) (Set, bool) {
	switch h := v.(type) {
	case Set:
		return h.Clone(), true
	case *Set:
		if h == nil {
			return Set{}, false
		}
		return h.Clone(), true
	case map[string]string:
		return FromMap(h), true
	case http.Header:
		return FromHTTP(h), true
	case map[string]any:
		m := make(map[string]string, len(h))
		for k, raw := range h {
			switch v := raw.(type) {
			case string:
				m[k] = v
			case bool, int, int64, uint64, float64:
				m[k] = fmt.Sprint(v)
			}
		}
		return FromMap(m), true
	default:
		return Set{}, false
	}
}

// Parse reads a "Name: value" line as used on command lines.
func Parse(line string) (Field, error) {
	name, value, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Field{}, fmt.Errorf("invalid header %q: expected \"Name: value\"", line)
	}
	return Field{Name: name, Value: strings.TrimSpace(value)}, nil
}

// Len returns the number of fields.
func (s Set) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s Set) Fields() []Field {
	if len(s.fields) == 0 {
		return nil
	}
	return slices.Clone(s.fields)
}

// All iterates the fields in order.
func (s Set) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range s.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// Names returns field names in order.
func (s Set) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s Set) index(name string) int {
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the first field matching name.
func (s Set) Get(name string) string {
	if i := s.index(name); i >= 0 {
		return s.fields[i].Value
	}
	return ""
}

// Lookup is Get with a presence flag.
func (s Set) Lookup(name string) (string, bool) {
	if i := s.index(name); i >= 0 {
		return s.fields[i].Value, true
	}
	return "", false
}

// Has reports whether any field matches name.
func (s Set) Has(name string) bool { return s.index(name) >= 0 }

// Add appends a field without looking for an existing one. Duplicates are
// allowed until Normalize or Set collapses them.
func (s *Set) Add(name, value string) {
	s.fields = append(s.fields, Field{Name: name, Value: value})
}

// Set replaces the first field matching name in place, using the given
// casing, and drops any later matches. Missing names are appended.
func (s *Set) Set(name, value string) {
	i := s.index(name)
	if i < 0 {
		s.Add(name, value)
		return
	}
	s.fields[i] = Field{Name: name, Value: value}
	s.dropAfter(i, name)
}

// Prepend inserts a field at the front unless a field with that name is
// already present, in which case the set is unchanged.
func (s *Set) Prepend(name, value string) bool {
	if s.Has(name) {
		return false
	}
	s.fields = slices.Insert(s.fields, 0, Field{Name: name, Value: value})
	return true
}

// Del removes every field matching name.
func (s *Set) Del(name string) {
	s.fields = slices.DeleteFunc(s.fields, func(f Field) bool {
		return strings.EqualFold(f.Name, name)
	})
}

func (s *Set) dropAfter(i int, name string) {
	kept := s.fields[:i+1]
	for _, f := range s.fields[i+1:] {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	s.fields = kept
}

// Merge overlays other onto s. Fields of other override same-named fields of
// s, keeping the position already held in s.
func (s *Set) Merge(other Set) {
	for _, f := range other.fields {
		s.Set(f.Name, f.Value)
	}
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	return Set{fields: slices.Clone(s.fields)}
}

// Normalize collapses case variants of each canonical name. For every
// canonical name, the first matching field is renamed to the canonical
// casing and keeps its position and value; later matches are discarded.
// Other fields keep their order.
func (s Set) Normalize(canonical ...string) Set {
	seen := make([]bool, len(canonical))
	out := Set{fields: make([]Field, 0, len(s.fields))}
	for _, f := range s.fields {
		k := slices.IndexFunc(canonical, func(c string) bool {
			return strings.EqualFold(c, f.Name)
		})
		if k < 0 {
			out.fields = append(out.fields, f)
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out.fields = append(out.fields, Field{Name: canonical[k], Value: f.Value})
	}
	return out
}

// HTTP converts the set to an http.Header. Case variants of the same name
// become multiple values of one key.
func (s Set) HTTP() http.Header {
	h := make(http.Header, len(s.fields))
	for _, f := range s.fields {
		h.Add(f.Name, f.Value)
	}
	return h
}

// Map converts the set to a plain map, last value winning.
func (s Set) Map() map[string]string {
	m := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		m[f.Name] = f.Value
	}
	return m
}

// Equal reports whether both sets hold the same fields in the same order.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.fields, other.fields) // nil and empty compare equal
}

// String renders the set as header lines.
func (s Set) String() string {
	var b strings.Builder
	for _, f := range s.fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	return b.String()
}

// MarshalJSON encodes the set as a JSON object with keys in field order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		s.fields = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("header: expected JSON object, got %v", tok)
	}
	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("header: unexpected key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("header: value of %q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	s.fields = fields
	return nil
}
