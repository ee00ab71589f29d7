package session

import "github.com/s3gear/s3gear/internal/credential"

// State is the lifecycle position of the credential set.
type State int

// Lifecycle states.
const (
	StateNoCredential State = iota
	StateAwaitingLogin
	StateTokensValid
	StateRefreshing
	StateManual
)

func (s State) String() string {
	switch s {
	case StateNoCredential:
		return "no credential"
	case StateAwaitingLogin:
		return "awaiting login"
	case StateTokensValid:
		return "tokens valid"
	case StateRefreshing:
		return "refreshing"
	case StateManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Reason says why a refresh was triggered.
type Reason string

// Refresh reasons.
const (
	ReasonBlank    Reason = "blank"
	ReasonExpired  Reason = "expiry"
	ReasonRejected Reason = "rejected"
	ReasonForced   Reason = "forced"
)

// stateFor infers the resting state of a stored credential set.
func stateFor(c credential.Credentials) State {
	switch {
	case c.IsManual():
		return StateManual
	case c.Session == "":
		return StateNoCredential
	default:
		return StateTokensValid
	}
}

// mergeLocale applies the locale rules after a derivation: a language the
// user chose always wins, and the account's country replaces the stored one.
// Manually entered tokens carry no account, so a stored country is kept.
// Account values the game does not serve fall back to the defaults.
func mergeLocale(stored, derived credential.Locale, manual bool) credential.Locale {
	out := supportedLocale(derived)

	if stored.Lang != "" {
		out.Lang = stored.Lang
	}

	if manual && stored.Country != "" {
		out.Country = stored.Country
	}

	return out.OrDefault()
}

// supportedLocale canonicalizes an account locale, blanking fields that fail
// validation so OrDefault fills them.
func supportedLocale(l credential.Locale) credential.Locale {
	var out credential.Locale

	if lang, err := credential.NormalizeLanguage(l.Lang); err == nil {
		out.Lang = lang
	}

	if country, err := credential.NormalizeCountry(l.Country); err == nil {
		out.Country = country
	}

	return out
}
