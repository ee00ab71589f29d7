package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/s3gear/s3gear/internal/credential"
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateLogLevel(cfg.LogLevel)...)
	errs = append(errs, validateFGenURL(cfg.FGenURL)...)
	errs = append(errs, validateAccountLocale(cfg.AccountLocale)...)
	errs = append(errs, validateSessionStore(cfg.SessionStore)...)
	errs = append(errs, validateUserAgent(cfg.AppUserAgent)...)

	return errors.Join(errs...)
}

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

// ValidateFGenURL checks that the derivation endpoint is an absolute
// http(s) URL. Exported for the --f-gen flag and S3GEAR_F_GEN.
func ValidateFGenURL(raw string) error {
	return errors.Join(validateFGenURL(raw)...)
}

func validateFGenURL(raw string) []error {
	// Empty means "use the default".
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("f_gen: invalid URL %q: %w", raw, err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("f_gen: must be an http or https URL; got %q", raw)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("f_gen: missing host in %q", raw)}
	}

	return nil
}

func validateAccountLocale(raw string) []error {
	if _, err := credential.ParseLocale(raw); err != nil {
		return []error{fmt.Errorf("acc_loc: %w", err)}
	}

	return nil
}

func validateSessionStore(store string) []error {
	switch store {
	case "", SessionStoreFile, SessionStoreKeyring:
		return nil
	default:
		return []error{fmt.Errorf("session_store: must be %q or %q; got %q",
			SessionStoreFile, SessionStoreKeyring, store)}
	}
}

func validateUserAgent(ua string) []error {
	if strings.ContainsAny(ua, "\r\n") {
		return []error{fmt.Errorf("app_user_agent: must be a single line")}
	}

	return nil
}
