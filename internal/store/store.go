// Package store holds the layered client configuration.
//
// A Store maps keys to values inside a named profile. Switching the active
// profile switches the whole key space. A client owns two stores: the
// session store (base URL, default headers) and the account store (access
// token). Stores live in memory; a Backend persists them between runs.
package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/apibean/apibean-cli/internal/header"
)

// Key names a configuration value.
type Key string

const (
	KeyBaseURL     Key = "base_url"
	KeyHeaders     Key = "headers"
	KeyAccessToken Key = "access_token"
)

// Names of the two stores a client owns.
const (
	Session = "session"
	Account = "account"
)

// DefaultProfile is active until SetProfile is called.
const DefaultProfile = "default"

// Values is a bulk set of configuration values.
type Values map[Key]any

// Store is a profile-keyed configuration mapping. Individual operations are
// safe for concurrent use; sequences of operations are not atomic.
type Store struct {
	mu       sync.RWMutex
	name     string
	profile  string
	profiles map[string]Values
}

// New creates an empty store with the default profile active.
func New(name string) *Store {
	return &Store{
		name:     name,
		profile:  DefaultProfile,
		profiles: map[string]Values{},
	}
}

// Name returns the store name, e.g. Session or Account.
func (s *Store) Name() string { return s.name }

// Profile returns the active profile.
func (s *Store) Profile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetProfile switches the active profile. An empty name selects
// DefaultProfile.
func (s *Store) SetProfile(profile string) {
	if profile == "" {
		profile = DefaultProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
}

// Profiles lists every profile holding at least one value, plus the active
// one, sorted.
func (s *Store) Profiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles)+1)
	for name, values := range s.profiles {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	if !slices.Contains(names, s.profile) {
		names = append(names, s.profile)
	}
	slices.Sort(names)
	return names
}

// Get returns the value for key in the active profile, or def when unset.
func (s *Store) Get(key Key, def any) any {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}

// Lookup returns the value for key and whether it is set.
func (s *Store) Lookup(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.profiles[s.profile][key]
	return v, ok
}

// String returns the value for key when it is a string.
func (s *Store) String(key Key) string {
	v, _ := s.Get(key, "").(string)
	return v
}

// Headers returns the stored default headers, if the value is a mapping.
func (s *Store) Headers() (header.Set, bool) {
	v, ok := s.Lookup(KeyHeaders)
	if !ok {
		return header.Set{}, false
	}
	return header.FromValue(v)
}

// Set stores value under key in the active profile.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active()[key] = value
}

// Delete removes key from the active profile.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles[s.profile], key)
}

// Update overwrites every given key.
func (s *Store) Update(values Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.active(), values)
}

// Default sets only the keys that are not set yet.
func (s *Store) Default(values Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.active()
	for k, v := range values {
		if _, ok := active[k]; !ok {
			active[k] = v
		}
	}
}

// Values returns a copy of the active profile's values.
func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.profiles[s.profile])
}

func (s *Store) active() Values {
	values, ok := s.profiles[s.profile]
	if !ok {
		values = Values{}
		s.profiles[s.profile] = values
	}
	return values
}

// Snapshot is the persisted form of a store.
type Snapshot struct {
	Profile  string                             `json:"profile"`
	Profiles map[string]map[Key]json.RawMessage `json:"profiles"`
}

// Snapshot encodes every profile of the store.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Profile:  s.profile,
		Profiles: make(map[string]map[Key]json.RawMessage, len(s.profiles)),
	}
	for name, values := range s.profiles {
		encoded := make(map[Key]json.RawMessage, len(values))
		for k, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return Snapshot{}, fmt.Errorf("encode %s/%s/%s: %w", s.name, name, k, err)
			}
			encoded[k] = raw
		}
		snap.Profiles[name] = encoded
	}
	return snap, nil
}

// Restore replaces the store contents with snap.
func (s *Store) Restore(snap Snapshot) error {
	profiles := make(map[string]Values, len(snap.Profiles))
	for name, encoded := range snap.Profiles {
		values := make(Values, len(encoded))
		for k, raw := range encoded {
			v, err := decodeValue(k, raw)
			if err != nil {
				return fmt.Errorf("decode %s/%s/%s: %w", s.name, name, k, err)
			}
			values[k] = v
		}
		profiles[name] = values
	}

	profile := snap.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.profiles = profiles
	return nil
}

func decodeValue(key Key, raw json.RawMessage) (any, error) {
	switch key {
	case KeyHeaders:
		var h header.Set
		if err := json.Unmarshal(raw, &h); err == nil {
			return h, nil
		}
	case KeyBaseURL, KeyAccessToken:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
