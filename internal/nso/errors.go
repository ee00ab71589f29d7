// Package nso implements the Nintendo Switch Online token handshake: the
// interactive login that yields a session token, and the multi-step
// derivation that turns a session token into a gtoken and bullet token with
// the help of a third-party f-token service.
package nso

import (
	"errors"
	"fmt"
)

// Step names one round of the handshake.
type Step string

// Handshake steps, in the order they run.
const (
	StepSessionToken    Step = "session token"
	StepIDToken         Step = "account token"
	StepUserInfo        Step = "user info"
	StepFTokenLogin     Step = "f-token (login)"
	StepCoralLogin      Step = "coral login"
	StepFTokenWebAPI    Step = "f-token (web service)"
	StepWebServiceToken Step = "web service token"
	StepBulletToken     Step = "bullet token"
)

var (
	// ErrDerivationFailed is matched by every *StepError.
	ErrDerivationFailed = errors.New("nso: token derivation failed")

	// ErrCredentialAbsent means no session token exists and none could be
	// obtained: the user declined to log in or cannot be prompted.
	ErrCredentialAbsent = errors.New("nso: no session credential")
)

// StepError reports which handshake step failed. StatusCode is zero for
// transport and decode failures.
type StepError struct {
	Step       Step
	StatusCode int
	Err        error
}

func (e *StepError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("nso: %s failed (HTTP %d): %v", e.Step, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("nso: %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrDerivationFailed, e.Err}
}

func stepErr(step Step, status int, err error) *StepError {
	return &StepError{Step: step, StatusCode: status, Err: err}
}
