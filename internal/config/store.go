package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/s3gear/s3gear/internal/credential"
)

// Sentinel errors for the store. Use errors.Is to check.
var (
	// ErrConfigMissing marks a first run: no file, or a blank one. Load
	// recovers from it by writing defaults; it is only visible in logs.
	ErrConfigMissing = errors.New("config: config file missing")

	// ErrPersistenceFailed wraps every failed write. Fatal for callers:
	// subsequent runs depend on what was written.
	ErrPersistenceFailed = errors.New("config: persisting config failed")
)

// Store is the credential store. After the first Load the in-memory Config is
// the single source of truth; the file is only ever written, never re-read to
// pick up our own changes. All access is serialized so concurrent callers see
// whole credential sets.
type Store struct {
	mu      sync.Mutex
	path    string // immutable after construction
	cfg     *Config
	secrets SecretStore
	logger  *slog.Logger
}

// NewStore creates a Store for the file at path. secrets may be nil when the
// keyring backend is not available; configs that ask for it then fail to load.
func NewStore(path string, secrets SecretStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:    path,
		secrets: secrets,
		logger:  logger,
	}
}

// Open creates a Store and loads it.
func Open(path string, secrets SecretStore, logger *slog.Logger) (*Store, error) {
	s := NewStore(path, secrets, logger)
	if _, err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the config file path. Thread-safe without locking because
// the path is immutable after construction.
func (s *Store) Path() string {
	return s.path
}

// Load reads the config file, replacing the in-memory state. A missing or
// blank file is regenerated with defaults and then read back. Malformed TOML,
// unknown keys and invalid values are errors.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readOrInit()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", s.path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := s.loadSecret(cfg); err != nil {
		return nil, err
	}

	s.cfg = cfg

	s.logger.Debug("config loaded",
		slog.String("path", s.path),
		slog.Bool("has_session", cfg.SessionToken != ""),
		slog.Bool("has_tokens", cfg.GToken != "" && cfg.BulletToken != ""),
		slog.String("acc_loc", cfg.AccountLocale),
	)

	return cfg.clone(), nil
}

// readOrInit returns the file content, writing and re-reading the default
// config first when the file is missing or blank.
func (s *Store) readOrInit() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config file %s: %w", s.path, err)
	}

	if err == nil && len(bytes.TrimSpace(data)) > 0 {
		return data, nil
	}

	s.logger.Info("generating new config file",
		slog.String("path", s.path),
		slog.String("reason", ErrConfigMissing.Error()),
	)

	if err := s.persist(DefaultConfig()); err != nil {
		return nil, err
	}

	data, err = os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("re-reading generated config %s: %w", s.path, err)
	}

	return data, nil
}

// loadSecret fills SessionToken from the keyring when configured to.
func (s *Store) loadSecret(cfg *Config) error {
	if !cfg.UsesKeyring() || cfg.SessionToken != "" {
		return nil
	}

	if s.secrets == nil {
		return fmt.Errorf("config: session_store = %q but no keyring is available", SessionStoreKeyring)
	}

	session, err := s.secrets.Get(secretSessionToken)
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("config: reading session token from keyring: %w", err)
	}

	cfg.SessionToken = session

	return nil
}

// Config returns a copy of the current config. Load must have been called.
func (s *Store) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current().clone()
}

// Credentials returns the current credential set.
func (s *Store) Credentials() credential.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current().Credentials()
}

// SaveCredentials replaces every credential field and persists the whole
// record. On failure the in-memory state is left unchanged.
func (s *Store) SaveCredentials(creds credential.Credentials) error {
	return s.Update(func(cfg *Config) {
		cfg.SetCredentials(creds)
	})
}

// Update applies fn to a copy of the current config, validates it and
// persists it. On failure the in-memory state is left unchanged.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current().clone()
	fn(next)

	return s.saveLocked(next)
}

// Save validates cfg and persists it as the new state.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(cfg.clone())
}

func (s *Store) saveLocked(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := s.persist(cfg); err != nil {
		return err
	}

	s.cfg = cfg

	s.logger.Debug("config saved",
		slog.String("path", s.path),
		slog.Bool("has_session", cfg.SessionToken != ""),
		slog.Bool("has_tokens", cfg.GToken != "" && cfg.BulletToken != ""),
	)

	return nil
}

// persist writes cfg to disk, routing the session token to the keyring when
// configured. If the file write fails the previous keyring entry is put back,
// so the keyring never runs ahead of the file. Every failure wraps
// ErrPersistenceFailed. Caller must hold s.mu.
func (s *Store) persist(cfg *Config) error {
	onDisk := cfg.clone()
	restoreSecret := func() {}

	if cfg.UsesKeyring() {
		prev := ""
		if s.cfg != nil {
			prev = s.cfg.SessionToken
		}

		if err := s.storeSecret(cfg.SessionToken); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}

		onDisk.SessionToken = ""
		restoreSecret = func() {
			if err := s.storeSecret(prev); err != nil {
				s.logger.Warn("restoring keyring session token failed", slog.String("error", err.Error()))
			}
		}
	}

	data, err := encode(onDisk)
	if err != nil {
		restoreSecret()
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	if err := atomicWriteFile(s.path, data); err != nil {
		restoreSecret()
		return fmt.Errorf("%w: %s: %w", ErrPersistenceFailed, s.path, err)
	}

	return nil
}

func (s *Store) storeSecret(session string) error {
	if s.secrets == nil {
		return fmt.Errorf("session_store = %q but no keyring is available", SessionStoreKeyring)
	}

	if session == "" {
		if err := s.secrets.Delete(secretSessionToken); err != nil && !errors.Is(err, ErrSecretNotFound) {
			return fmt.Errorf("removing session token from keyring: %w", err)
		}

		return nil
	}

	if err := s.secrets.Set(secretSessionToken, session); err != nil {
		return fmt.Errorf("writing session token to keyring: %w", err)
	}

	return nil
}

// current returns the loaded config, or defaults if Load was never called.
// Caller must hold s.mu.
func (s *Store) current() *Config {
	if s.cfg == nil {
		s.cfg = DefaultConfig()
	}

	return s.cfg
}
