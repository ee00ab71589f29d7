// Package config implements the flat TOML key-value store that holds the
// session credential, the derived short-lived tokens, the account locale and
// the handful of settings s3gear needs. Loading follows an override chain
// (defaults -> config file -> environment -> CLI flags); saving always
// rewrites the whole file atomically.
package config

import (
	"fmt"

	"github.com/s3gear/s3gear/internal/credential"
)

// Config is the on-disk record. Every key is top-level; there are no
// sections. api_key is carried for older config files and otherwise unused.
type Config struct {
	APIKey        string `toml:"api_key"`
	AccountLocale string `toml:"acc_loc"`
	GToken        string `toml:"gtoken"`
	BulletToken   string `toml:"bullettoken"`
	SessionToken  string `toml:"session_token"`
	FGenURL       string `toml:"f_gen"`

	// Optional keys. Omitted from freshly generated files.
	AppUserAgent string `toml:"app_user_agent,omitempty"`
	LogLevel     string `toml:"log_level,omitempty"`
	SessionStore string `toml:"session_store,omitempty"`
}

// Session storage backends for the session_store key.
const (
	SessionStoreFile    = "file"
	SessionStoreKeyring = "keyring"
)

// Credentials extracts the credential set. The stored locale was validated
// on load, so a parse failure here means the caller mutated AccountLocale
// directly; the zero Locale is returned in that case.
func (c *Config) Credentials() credential.Credentials {
	loc, err := credential.ParseLocale(c.AccountLocale)
	if err != nil {
		loc = credential.Locale{}
	}

	return credential.Credentials{
		Session: c.SessionToken,
		Access:  c.GToken,
		Bullet:  c.BulletToken,
		Locale:  loc,
	}
}

// SetCredentials overwrites every credential field from creds.
func (c *Config) SetCredentials(creds credential.Credentials) {
	c.SessionToken = creds.Session
	c.GToken = creds.Access
	c.BulletToken = creds.Bullet
	c.AccountLocale = creds.Locale.String()
}

// UsesKeyring reports whether the session credential lives in the OS keyring.
func (c *Config) UsesKeyring() bool {
	return c.SessionStore == SessionStoreKeyring
}

// clone returns a shallow copy; Config holds only strings.
func (c *Config) clone() *Config {
	cp := *c

	return &cp
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	FGenURL    string // --f-gen flag (empty = use config)
}

// ResolvePath picks the config file path: CLI > env > default.
func ResolvePath(env EnvOverrides, cli CLIOverrides) (string, error) {
	path := DefaultConfigPath()
	if env.ConfigPath != "" {
		path = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		path = cli.ConfigPath
	}

	if path == "" {
		return "", fmt.Errorf("config: cannot determine config path (no home directory); pass --config")
	}

	return path, nil
}
