package config

import (
	"fmt"
	"io"

	"github.com/s3gear/s3gear/internal/credential"
)

// RenderEffective writes the effective configuration as a human-readable
// summary to w, for "config show". Secrets are redacted.
func RenderEffective(cfg *Config, path, fGenURL string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (%s)\n\n", path)
	ew.printf("  api_key        = %q\n", credential.Redact(cfg.APIKey))
	ew.printf("  acc_loc        = %q\n", cfg.AccountLocale)
	ew.printf("  gtoken         = %q\n", credential.Redact(cfg.GToken))
	ew.printf("  bullettoken    = %q\n", credential.Redact(cfg.BulletToken))
	ew.printf("  session_token  = %q\n", credential.Redact(cfg.SessionToken))
	ew.printf("  f_gen          = %q\n", fGenURL)
	ew.printf("  log_level      = %q\n", cfg.EffectiveLogLevel())

	store := cfg.SessionStore
	if store == "" {
		store = SessionStoreFile
	}

	ew.printf("  session_store  = %q\n", store)

	if cfg.AppUserAgent != "" {
		ew.printf("  app_user_agent = %q\n", cfg.AppUserAgent)
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
