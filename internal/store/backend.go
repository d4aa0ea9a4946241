package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by a Backend that has nothing saved under a name.
var ErrNotFound = errors.New("store not found")

// Backend persists store snapshots by store name.
type Backend interface {
	Load(ctx context.Context, name string) (Snapshot, error)
	Save(ctx context.Context, name string, snap Snapshot) error
}

// Open creates a store named name and fills it from b. A missing snapshot
// yields an empty store.
func Open(ctx context.Context, name string, b Backend) (*Store, error) {
	s := New(name)
	if b == nil {
		return s, nil
	}
	snap, err := b.Load(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s store: %w", name, err)
	}
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

// Persist writes s to b.
func Persist(ctx context.Context, s *Store, b Backend) error {
	if b == nil {
		return nil
	}
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := b.Save(ctx, s.Name(), snap); err != nil {
		return fmt.Errorf("failed to save %s store: %w", s.Name(), err)
	}
	return nil
}

// MemoryBackend keeps snapshots in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snaps: map[string][]byte{}}
}

func (m *MemoryBackend) Load(_ context.Context, name string) (Snapshot, error) {
	m.mu.Lock()
	data, ok := m.snaps[name]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (m *MemoryBackend) Save(_ context.Context, name string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[name] = data
	return nil
}
