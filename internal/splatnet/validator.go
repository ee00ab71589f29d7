package splatnet

import (
	"context"
	"log/slog"
)

// Prober sends a persisted query and reports only the status code.
type Prober interface {
	Probe(ctx context.Context, queryID string) (int, error)
}

// Validator checks whether the stored tokens are still accepted, using the
// cheap home-page query rather than a data fetch.
type Validator struct {
	prober Prober
	creds  CredentialSource
	logger *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(prober Prober, creds CredentialSource, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{prober: prober, creds: creds, logger: logger}
}

// IsValid reports whether the current tokens are accepted. A missing session
// credential or token answers false without any request. Otherwise the status
// code of the home probe is the only signal: the backend rejects stale tokens
// with a non-200 and no structured body. Transport failures are returned as
// errors, since they say nothing about the tokens.
func (v *Validator) IsValid(ctx context.Context) (bool, error) {
	creds := v.creds.Credentials()

	if creds.Session == "" || !creds.HasTokens() {
		v.logger.Debug("tokens blank, skipping probe",
			slog.Bool("has_session", creds.Session != ""),
			slog.Bool("has_access", creds.Access != ""),
			slog.Bool("has_bullet", creds.Bullet != ""),
		)

		return false, nil
	}

	status, err := v.prober.Probe(ctx, HomeQuery)
	if err != nil {
		return false, err
	}

	valid := isSuccess(status)

	v.logger.Debug("token probe", slog.Int("status", status), slog.Bool("valid", valid))

	return valid, nil
}
