package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "S3GEAR_CONFIG"
	EnvFGen   = "S3GEAR_F_GEN"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // S3GEAR_CONFIG: override config file path
	FGenURL    string // S3GEAR_F_GEN: override the f-token derivation endpoint
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		FGenURL:    os.Getenv(EnvFGen),
	}
}

// EffectiveFGenURL applies the override chain for the derivation endpoint:
// CLI > env > config file > default.
func (c *Config) EffectiveFGenURL(env EnvOverrides, cli CLIOverrides) string {
	switch {
	case cli.FGenURL != "":
		return cli.FGenURL
	case env.FGenURL != "":
		return env.FGenURL
	case c.FGenURL != "":
		return c.FGenURL
	default:
		return DefaultFGenURL
	}
}
