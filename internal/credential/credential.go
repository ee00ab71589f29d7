// Package credential defines the credential set shared by the config store,
// the token handshake and the backend client. It is a leaf package imported by
// config/, nso/, splatnet/ and session/ so none of them has to import another
// to talk about tokens.
package credential

import (
	"fmt"
	"strings"
)

// ManualSession is the session-credential sentinel meaning the user opted out
// of automatic token derivation and types gtoken/bulletToken in by hand.
const ManualSession = "skip"

// Credentials is the complete credential set. Access (gtoken) and Bullet are
// short-lived and always replaced together; Session is long-lived.
type Credentials struct {
	Session string
	Access  string
	Bullet  string
	Locale  Locale
}

// IsManual reports whether the session credential is the manual sentinel.
func (c Credentials) IsManual() bool {
	return c.Session == ManualSession
}

// HasSession reports whether a real (non-manual) session credential exists.
func (c Credentials) HasSession() bool {
	return c.Session != "" && !c.IsManual()
}

// HasTokens reports whether both short-lived tokens are present.
func (c Credentials) HasTokens() bool {
	return c.Access != "" && c.Bullet != ""
}

// WithTokens returns a copy with both short-lived tokens replaced.
func (c Credentials) WithTokens(access, bullet string) Credentials {
	c.Access = access
	c.Bullet = bullet

	return c
}

// WithoutTokens returns a copy with both short-lived tokens cleared.
func (c Credentials) WithoutTokens() Credentials {
	return c.WithTokens("", "")
}

// String renders the credential set with every secret redacted, so that a
// stray %v in a log line never leaks a token.
func (c Credentials) String() string {
	return fmt.Sprintf("session=%s access=%s bullet=%s locale=%s",
		Redact(c.Session), Redact(c.Access), Redact(c.Bullet), c.Locale)
}

// redactPrefix is how many leading characters Redact keeps.
const redactPrefix = 4

// Redact returns a display-safe form of a secret: a short prefix and the
// length. The manual sentinel is shown as-is because it is not a secret.
func Redact(secret string) string {
	switch {
	case secret == "":
		return "(empty)"
	case secret == ManualSession:
		return ManualSession
	case len(secret) <= redactPrefix*2:
		return fmt.Sprintf("****(%d chars)", len(secret))
	default:
		return fmt.Sprintf("%s****(%d chars)", secret[:redactPrefix], len(secret))
	}
}

// TrimToken strips whitespace and surrounding quotes users tend to paste.
func TrimToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
