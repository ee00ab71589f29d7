package credential

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// localeSeparator joins language and country in the stored acc_loc value.
const localeSeparator = "|"

// SupportedLanguages are the game languages the backend serves, in the
// canonical BCP 47 form it expects in Accept-Language.
var SupportedLanguages = []string{
	"de-DE", "en-GB", "en-US", "es-ES", "es-MX", "fr-CA", "fr-FR",
	"it-IT", "ja-JP", "ko-KR", "nl-NL", "ru-RU", "zh-CN", "zh-TW",
}

// DefaultLocale is used when neither the user nor the account supplied one.
var DefaultLocale = Locale{Lang: "en-US", Country: "US"}

// ErrUnsupportedLanguage is returned for language codes the game does not serve.
var ErrUnsupportedLanguage = errors.New("credential: unsupported language")

// Locale is a language code + country code pair.
type Locale struct {
	Lang    string
	Country string
}

// IsZero reports whether neither field is set.
func (l Locale) IsZero() bool {
	return l.Lang == "" && l.Country == ""
}

// String renders the stored form, e.g. "en-US|US". A zero Locale renders as "".
func (l Locale) String() string {
	if l.IsZero() {
		return ""
	}

	return l.Lang + localeSeparator + l.Country
}

// OrDefault fills missing fields from DefaultLocale.
func (l Locale) OrDefault() Locale {
	if l.Lang == "" {
		l.Lang = DefaultLocale.Lang
	}

	if l.Country == "" {
		l.Country = DefaultLocale.Country
	}

	return l
}

// ParseLocale parses the stored "<lang>|<country>" form. An empty string
// yields the zero Locale. A bare language ("ja-JP") is accepted and leaves the
// country empty, to be filled from the account on the next derivation.
func ParseLocale(s string) (Locale, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locale{}, nil
	}

	langPart, countryPart, hasCountry := strings.Cut(s, localeSeparator)

	lang, err := NormalizeLanguage(langPart)
	if err != nil {
		return Locale{}, err
	}

	loc := Locale{Lang: lang}

	if hasCountry && strings.TrimSpace(countryPart) != "" {
		country, err := NormalizeCountry(countryPart)
		if err != nil {
			return Locale{}, err
		}

		loc.Country = country
	}

	return loc, nil
}

// NormalizeLanguage canonicalizes a language tag ("en-us" -> "en-US") and
// checks it against SupportedLanguages.
func NormalizeLanguage(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedLanguage, code, err)
	}

	canonical := tag.String()
	if !slices.Contains(SupportedLanguages, canonical) {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedLanguage, code, strings.Join(SupportedLanguages, ", "))
	}

	return canonical, nil
}

// NormalizeCountry canonicalizes an ISO 3166-1 alpha-2 country code.
func NormalizeCountry(code string) (string, error) {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("credential: invalid country %q: %w", code, err)
	}

	if !region.IsCountry() {
		return "", fmt.Errorf("credential: %q is not a country", code)
	}

	return region.String(), nil
}
