// Package splatnet provides the authenticated client for the SplatNet 3
// GraphQL backend: persisted-query requests, bullet-token issuance, token
// validation and the web-view version the backend insists on.
package splatnet

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, splatnet.ErrTokenRejected) to check.
var (
	// ErrTokenRejected marks any non-success answer to an authenticated
	// GraphQL call. The backend answers expired tokens with a bare non-200,
	// so this is the signal to re-derive tokens and retry once.
	ErrTokenRejected = errors.New("splatnet: token rejected")

	ErrBadRequest   = errors.New("splatnet: bad request")
	ErrUnauthorized = errors.New("splatnet: unauthorized")
	ErrForbidden    = errors.New("splatnet: forbidden")
	ErrNotFound     = errors.New("splatnet: not found")
	ErrThrottled    = errors.New("splatnet: throttled")
	ErrServerError  = errors.New("splatnet: server error")

	// Bullet-token specific answers.
	ErrInvalidGToken   = errors.New("splatnet: gtoken rejected by bullet-token endpoint")
	ErrObsoleteVersion = errors.New("splatnet: web view version is obsolete")
	ErrNoOnlinePlay    = errors.New("splatnet: account has never played online")
)

// APIError wraps a sentinel error with HTTP status code, the endpoint and the
// response body for debugging.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error // status sentinel, for errors.Is()

	// rejected is set for authenticated GraphQL calls; it makes the error
	// match ErrTokenRejected.
	rejected bool
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("splatnet: HTTP %d from %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}

	return fmt.Sprintf("splatnet: HTTP %d from %s", e.StatusCode, e.Endpoint)
}

func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)

	if e.rejected {
		errs = append(errs, ErrTokenRejected)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isSuccess reports whether code is a 2xx status.
func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
