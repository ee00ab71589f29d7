package config

// Default values written to a freshly generated config file.
const (
	// DefaultFGenURL is the public f-token derivation service (imink).
	DefaultFGenURL  = "https://api.imink.app/f"
	defaultLogLevel = "info"
)

// DefaultConfig returns the record written on first run: every documented
// key present, credential keys empty.
func DefaultConfig() *Config {
	return &Config{
		FGenURL: DefaultFGenURL,
	}
}

// EffectiveLogLevel returns log_level, or the default when unset.
func (c *Config) EffectiveLogLevel() string {
	if c.LogLevel == "" {
		return defaultLogLevel
	}

	return c.LogLevel
}
