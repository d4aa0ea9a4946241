// Package config loads CLI settings from config.yaml, .env files and
// APIBEAN_* environment variables, and opens the configured store backends.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/store"
)

const (
	EnvConfig          = "APIBEAN_CONFIG"
	EnvSessionBackend  = "APIBEAN_SESSION_BACKEND"
	EnvAccountBackend  = "APIBEAN_ACCOUNT_BACKEND"
	EnvSessionProfile  = "APIBEAN_SESSION_PROFILE"
	EnvAccountProfile  = "APIBEAN_ACCOUNT_PROFILE"
	EnvBaseURL         = "APIBEAN_BASE_URL"
	EnvAccessToken     = "APIBEAN_ACCESS_TOKEN"
	EnvTimeout         = "APIBEAN_TIMEOUT"
	EnvPresentErrors   = "APIBEAN_PRESENT_ERRORS"
	EnvStoreDir        = "APIBEAN_STORE_DIR"
	EnvRedisURL        = "APIBEAN_REDIS_URL"
	EnvRedisPrefix     = "APIBEAN_REDIS_PREFIX"
	EnvRedisTTL        = "APIBEAN_REDIS_TTL"
	EnvKeyringBackend  = "APIBEAN_KEYRING_BACKEND"
	EnvKeyringPassword = "APIBEAN_KEYRING_PASSWORD"
	EnvCredentialsDir  = "APIBEAN_CREDENTIALS_DIR"
)

// Backend kinds accepted for the session and account stores.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
	BackendNone    = "none"
)

// PresentAll in present_errors presents every error code.
const PresentAll = "all"

var backendKinds = []string{BackendFile, BackendKeyring, BackendRedis, BackendMemory, BackendNone}

var userConfigDir = os.UserConfigDir

// ErrRedisURL is returned when a redis backend is selected without a URL.
var ErrRedisURL = errors.New("redis backend selected but no redis url configured (set redis.url or " + EnvRedisURL + ")")

// Config is the merged CLI configuration.
type Config struct {
	Session StoreConfig   `yaml:"session"`
	Account StoreConfig   `yaml:"account"`
	Request RequestConfig `yaml:"request"`
	// Dir holds file-backed stores. Defaults to the apibean config dir.
	Dir     string        `yaml:"dir"`
	Redis   RedisConfig   `yaml:"redis"`
	Keyring KeyringConfig `yaml:"keyring"`
}

// StoreConfig selects where a store persists and which profile is active.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Profile, when set, overrides the persisted active profile.
	Profile string `yaml:"profile"`
}

// RequestConfig holds per-request defaults.
type RequestConfig struct {
	// BaseURL and Headers seed the session store when it lacks them.
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	// PresentErrors lists error codes returned as values instead of
	// failing the command, or "all".
	PresentErrors []string `yaml:"present_errors"`
	// AccessToken comes from the environment only and is never persisted.
	AccessToken string `yaml:"-"`
}

type RedisConfig struct {
	URL    string        `yaml:"url"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type KeyringConfig struct {
	Backend  string `yaml:"backend"`
	Password string `yaml:"password"`
	Dir      string `yaml:"dir"`
}

// Default returns the built-in configuration: sessions in files, accounts
// in the OS keyring.
func Default() *Config {
	return &Config{
		Session: StoreConfig{Backend: BackendFile},
		Account: StoreConfig{Backend: BackendKeyring},
	}
}

// Dir returns the apibean directory under the user config dir.
func Dir() (string, error) {
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, "apibean"), nil
}

// Path returns $APIBEAN_CONFIG or config.yaml in Dir.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadEnvFiles loads .env from the working directory and from Dir. Values
// already present in the environment win.
func LoadEnvFiles() {
	candidates := []string{".env"}
	if dir, err := Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Load reads the config file at path (Path() when empty), then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvSessionBackend, &c.Session.Backend},
		{EnvAccountBackend, &c.Account.Backend},
		{EnvSessionProfile, &c.Session.Profile},
		{EnvAccountProfile, &c.Account.Profile},
		{EnvBaseURL, &c.Request.BaseURL},
		{EnvAccessToken, &c.Request.AccessToken},
		{EnvStoreDir, &c.Dir},
		{EnvRedisURL, &c.Redis.URL},
		{EnvRedisPrefix, &c.Redis.Prefix},
		{EnvKeyringBackend, &c.Keyring.Backend},
		{EnvKeyringPassword, &c.Keyring.Password},
		{EnvCredentialsDir, &c.Keyring.Dir},
	}
	for _, s := range strs {
		if v, ok := lookupEnv(s.key); ok {
			*s.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvTimeout, &c.Request.Timeout},
		{EnvRedisTTL, &c.Redis.TTL},
	}
	for _, d := range durations {
		v, ok := lookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookupEnv(EnvPresentErrors); ok {
		c.Request.PresentErrors = splitList(v)
	}
	return nil
}

// lookupEnv treats blank values as unset.
func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

// Validate checks backend kinds, durations and error codes.
func (c *Config) Validate() error {
	for _, sc := range []struct {
		name string
		kind string
	}{{store.Session, c.Session.Backend}, {store.Account, c.Account.Backend}} {
		if !slices.Contains(backendKinds, sc.kind) {
			return fmt.Errorf("invalid %s backend %q (must be one of %s)", sc.name, sc.kind, strings.Join(backendKinds, ", "))
		}
	}
	if c.Request.Timeout < 0 {
		return fmt.Errorf("request timeout must be >= 0")
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis ttl must be >= 0")
	}
	for _, code := range c.Request.PresentErrors {
		if code == PresentAll {
			continue
		}
		if !slices.Contains(apierr.Codes(), apierr.Code(code)) {
			return fmt.Errorf("invalid present_errors code %q", code)
		}
	}
	return nil
}

// Presenter builds the error presenter from PresentErrors.
func (c *Config) Presenter() curli.ErrorPresenter {
	if len(c.Request.PresentErrors) == 0 {
		return curli.NeverPresent
	}
	if slices.Contains(c.Request.PresentErrors, PresentAll) {
		return curli.AlwaysPresent
	}
	codes := make([]apierr.Code, 0, len(c.Request.PresentErrors))
	for _, code := range c.Request.PresentErrors {
		codes = append(codes, apierr.Code(code))
	}
	return curli.PresentCodes(codes...)
}

// StoreDir returns Dir or the default store directory.
func (c *Config) StoreDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	return store.DefaultDir()
}

// OpenBackend opens a store backend of the given kind. The returned close
// func releases connections and is never nil. BackendNone yields a nil
// backend, which keeps the store in memory for the process lifetime.
func (c *Config) OpenBackend(ctx context.Context, kind string) (store.Backend, func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case BackendNone:
		return nil, noop, nil
	case BackendMemory:
		return store.NewMemoryBackend(), noop, nil
	case BackendFile:
		dir, err := c.StoreDir()
		if err != nil {
			return nil, noop, err
		}
		return store.FileBackend{Dir: dir}, noop, nil
	case BackendKeyring:
		return store.NewKeyringBackend(store.KeyringOptions{
			Mode:     c.Keyring.Backend,
			FileDir:  c.Keyring.Dir,
			Password: c.Keyring.Password,
		}), noop, nil
	case BackendRedis:
		if c.Redis.URL == "" {
			return nil, noop, ErrRedisURL
		}
		client, err := store.DialRedis(ctx, c.Redis.URL)
		if err != nil {
			return nil, noop, err
		}
		return store.NewRedisBackend(client, store.RedisOptions{
			Prefix: c.Redis.Prefix,
			TTL:    c.Redis.TTL,
		}), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", kind)
	}
}
