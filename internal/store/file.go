package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type fileEntry struct {
	SavedAt time.Time `json:"saved_at"`
	Store   Snapshot  `json:"store"`
}

// FileBackend stores each snapshot as a JSON file in Dir.
type FileBackend struct {
	Dir string
}

// DefaultDir returns the platform config directory for apibean.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "apibean"), nil
}

func (f FileBackend) path(name string) string {
	return filepath.Join(f.Dir, sanitizeName(name)+".json")
}

func (f FileBackend) Load(_ context.Context, name string) (Snapshot, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return Snapshot{}, fmt.Errorf("invalid store file %s: %w", f.path(name), err)
	}
	return e.Store, nil
}

func (f FileBackend) Save(_ context.Context, name string, snap Snapshot) error {
	data, err := json.MarshalIndent(fileEntry{SavedAt: time.Now().UTC(), Store: snap}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return err
	}

	// Write temp then rename so readers never see a partial file.
	path := f.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "store"
	}
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}
