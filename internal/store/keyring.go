package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const (
	keyringService = "apibean"
	keyringPrefix  = "store:"

	KeyringBackendAuto   = "auto"
	KeyringBackendFile   = "file"
	KeyringBackendSystem = "system"
)

// openKeyring is replaced in tests.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring replaces the keyring opener and returns a restore func.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// KeyringOptions select and configure the keyring implementation.
type KeyringOptions struct {
	// Mode is KeyringBackendAuto, KeyringBackendFile or KeyringBackendSystem.
	Mode string
	// FileDir holds the encrypted file keyring. Defaults under the user
	// config dir.
	FileDir string
	// Password unlocks the file keyring. When empty an interactive prompt is
	// used if stdin is a terminal.
	Password string
}

// KeyringBackend stores snapshots as keyring items, one per store name.
// Use it for stores holding secrets such as access tokens.
type KeyringBackend struct {
	opts KeyringOptions
	ring keyring.Keyring
}

// NewKeyringBackend returns a backend that opens the keyring lazily.
func NewKeyringBackend(opts KeyringOptions) *KeyringBackend {
	return &KeyringBackend{opts: opts}
}

// NewKeyringBackendFrom wraps an already open keyring.
func NewKeyringBackendFrom(ring keyring.Keyring) *KeyringBackend {
	return &KeyringBackend{ring: ring}
}

func (k *KeyringBackend) open() (keyring.Keyring, error) {
	if k.ring != nil {
		return k.ring, nil
	}
	ring, err := openKeyring(keyringConfig(k.opts, runtime.GOOS, os.Getenv("DBUS_SESSION_BUS_ADDRESS")))
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	k.ring = ring
	return ring, nil
}

func (k *KeyringBackend) Load(_ context.Context, name string) (Snapshot, error) {
	ring, err := k.open()
	if err != nil {
		return Snapshot{}, err
	}
	item, err := ring.Get(keyringPrefix + name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("failed to read keyring item: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(item.Data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal keyring item: %w", err)
	}
	return snap, nil
}

func (k *KeyringBackend) Save(_ context.Context, name string, snap Snapshot) error {
	ring, err := k.open()
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return ring.Set(keyring.Item{
		Key:         keyringPrefix + name,
		Data:        data,
		Label:       "apibean " + name,
		Description: "apibean " + name + " configuration",
	})
}

func keyringConfig(opts KeyringOptions, goos, dbusAddr string) keyring.Config {
	cfg := keyring.Config{
		ServiceName: keyringService,
	}

	mode := normalizeKeyringMode(opts.Mode)
	if mode == KeyringBackendSystem {
		return cfg
	}

	// Auto mode still needs file details so keyring.Open can fall through to
	// encrypted file storage when no native backend exists.
	cfg.FileDir = opts.FileDir
	if cfg.FileDir == "" {
		cfg.FileDir = defaultKeyringDir()
	}
	cfg.FilePasswordFunc = filePassword(opts.Password)

	if shouldForceFileBackend(goos, mode, dbusAddr) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func normalizeKeyringMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case KeyringBackendFile:
		return KeyringBackendFile
	case KeyringBackendSystem, "os", "native":
		return KeyringBackendSystem
	default:
		return KeyringBackendAuto
	}
}

// Headless Linux has no secret service; use the encrypted file there.
func shouldForceFileBackend(goos, mode, dbusAddr string) bool {
	if mode == KeyringBackendFile {
		return true
	}
	if mode != KeyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func defaultKeyringDir() string {
	if dir, err := DefaultDir(); err == nil && strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, "keyring")
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".config", keyringService, "keyring")
	}
	return filepath.Join(os.TempDir(), keyringService, "keyring")
}

func filePassword(password string) keyring.PromptFunc {
	return func(prompt string) (string, error) {
		if password != "" {
			return password, nil
		}
		if !stdinHasTTY() {
			return "", errors.New("set APIBEAN_KEYRING_PASSWORD when using file keyring in non-interactive environments")
		}
		return keyring.TerminalPrompt(prompt)
	}
}
