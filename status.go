package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/s3gear/s3gear/internal/credential"
)

// Token state constants for status reporting.
const (
	tokenStateMissing  = "missing"
	tokenStateValid    = "valid"
	tokenStateRejected = "rejected"
	tokenStateUnknown  = "unknown"
)

var (
	flagStatusJSON    bool
	flagStatusOffline bool
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored credentials and whether the tokens still work",
		Long: `Display the session mode, locale and token state.

The gtoken expiry shown is read from the token itself without verifying it and
is informational only; the backend's answer to a probe is what counts.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}

	cmd.Flags().BoolVar(&flagStatusJSON, "json", false, "output in JSON format")
	cmd.Flags().BoolVar(&flagStatusOffline, "offline", false, "do not probe the backend")

	return cmd
}

// statusReport is the JSON schema for `status --json`.
type statusReport struct {
	ConfigPath   string     `json:"config_path"`
	Session      string     `json:"session"`
	Mode         string     `json:"mode"`
	Locale       string     `json:"locale"`
	GToken       string     `json:"gtoken"`
	GTokenExpiry *time.Time `json:"gtoken_expiry,omitempty"`
	BulletToken  string     `json:"bullet_token"`
	TokenState   string     `json:"token_state"`
	ProbeError   string     `json:"probe_error,omitempty"`
	SessionStore string     `json:"session_store"`
	FGenURL      string     `json:"f_gen"`
	WebViewVer   string     `json:"web_view_version,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	svc := NewServices(cc)
	report := buildStatusReport(ctx, cc, svc, !flagStatusOffline)

	if flagStatusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	printStatusText(cmd.OutOrStdout(), report, time.Now())

	return nil
}

func buildStatusReport(ctx context.Context, cc *CLIContext, svc *Services, probe bool) statusReport {
	cfg := cc.Store.Config()
	creds := cfg.Credentials()

	store := cfg.SessionStore
	if store == "" {
		store = "file"
	}

	r := statusReport{
		ConfigPath:   cc.Store.Path(),
		Session:      credential.Redact(creds.Session),
		Mode:         sessionMode(creds),
		Locale:       creds.Locale.OrDefault().String(),
		GToken:       credential.Redact(creds.Access),
		BulletToken:  credential.Redact(creds.Bullet),
		TokenState:   tokenStateMissing,
		SessionStore: store,
		FGenURL:      cc.FGenURL(),
	}

	if exp, ok := tokenExpiry(creds.Access); ok {
		r.GTokenExpiry = &exp
	}

	if !creds.HasTokens() || creds.Session == "" {
		return r
	}

	r.TokenState = tokenStateUnknown

	if !probe {
		return r
	}

	valid, err := svc.Validator.IsValid(ctx)

	switch {
	case err != nil:
		r.ProbeError = err.Error()
	case valid:
		r.TokenState = tokenStateValid
	default:
		r.TokenState = tokenStateRejected
	}

	r.WebViewVer = svc.Backend.WebViewVersion(ctx)

	return r
}

// sessionMode describes how tokens are obtained.
func sessionMode(c credential.Credentials) string {
	switch {
	case c.IsManual():
		return "manual"
	case c.Session == "":
		return "not logged in"
	default:
		return "automatic"
	}
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
// Display only: token validity is decided by the backend.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

func printStatusText(w io.Writer, r statusReport, now time.Time) {
	fmt.Fprintf(w, "Config:        %s\n", r.ConfigPath)
	fmt.Fprintf(w, "Mode:          %s (session %s, stored in %s)\n", r.Mode, r.Session, r.SessionStore)
	fmt.Fprintf(w, "Locale:        %s\n", r.Locale)
	fmt.Fprintf(w, "f-token API:   %s\n", r.FGenURL)

	gtoken := r.GToken
	if r.GTokenExpiry != nil {
		gtoken += " (" + formatExpiry(*r.GTokenExpiry, now) + ")"
	}

	fmt.Fprintf(w, "gtoken:        %s\n", gtoken)
	fmt.Fprintf(w, "bulletToken:   %s\n", r.BulletToken)

	state := r.TokenState
	if r.ProbeError != "" {
		state += " (probe failed: " + r.ProbeError + ")"
	}

	fmt.Fprintf(w, "Tokens:        %s\n", state)

	if r.WebViewVer != "" {
		fmt.Fprintf(w, "Web view:      %s\n", r.WebViewVer)
	}
}
