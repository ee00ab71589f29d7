package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/s3gear/s3gear/internal/config"
	"github.com/s3gear/s3gear/internal/nso"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagFGen       string
	flagVerbose    bool
	flagQuiet      bool
)

// httpClientTimeout is the default timeout for HTTP requests.
// Prevents hung connections from blocking CLI commands indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// CLIFlags are the parsed persistent flags.
type CLIFlags struct {
	ConfigPath string
	FGenURL    string
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and handed to
// every subcommand through the command context.
type CLIContext struct {
	Flags  CLIFlags
	Env    config.EnvOverrides
	Store  *config.Store
	Logger *slog.Logger

	// Stdin and Stderr back the interactive prompts. Tests replace them.
	Stdin       io.Reader
	Stderr      io.Writer
	Interactive bool
}

type cliContextKey struct{}

// withCLIContext attaches cc to ctx.
func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext set by the root pre-run. Panics if
// missing: every command runs after the pre-run.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("BUG: CLIContext missing from command context")
	}

	return cc
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Stderr, cc.Flags.Quiet, format, args...)
}

// CLIOverrides converts the flags into config overrides.
func (cc *CLIContext) CLIOverrides() config.CLIOverrides {
	return config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath, FGenURL: cc.Flags.FGenURL}
}

// FGenURL is the effective f-token service URL.
func (cc *CLIContext) FGenURL() string {
	return cc.Store.Config().EffectiveFGenURL(cc.Env, cc.CLIOverrides())
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main(). Running the root command
// without a subcommand performs an export.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3gear",
		Short: "Export your SplatNet 3 gear inventory",
		Long: `s3gear signs in to SplatNet 3 with your Nintendo Account session token,
keeps the short-lived gtoken and bulletToken fresh, and writes every gear item
you own to gears.json.`,
		Version: version,
		// Silence Cobra's default error/usage printing; exitOnError handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext()
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
		RunE: runExport,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagFGen, "f-gen", "", "f-token service URL (overrides f_gen)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	addExportFlags(cmd)

	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the config path, opens the credential store and
// builds the logger from the loaded log_level and the flags.
func loadCLIContext() (*CLIContext, error) {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		FGenURL:    flagFGen,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	if flags.FGenURL != "" {
		if err := config.ValidateFGenURL(flags.FGenURL); err != nil {
			return nil, fmt.Errorf("--f-gen: %w", err)
		}
	}

	env := config.ReadEnvOverrides()

	path, err := config.ResolvePath(env, config.CLIOverrides{ConfigPath: flags.ConfigPath})
	if err != nil {
		return nil, err
	}

	// The store logs before log_level is known; start from the flags alone.
	bootLogger := buildLogger("", flags)

	store, err := config.Open(path, config.KeyringSecrets{}, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(store.Config().LogLevel, flags)

	return &CLIContext{
		Flags:       flags,
		Env:         env,
		Store:       store,
		Logger:      logger,
		Stdin:       os.Stdin,
		Stderr:      os.Stderr,
		Interactive: stdinIsTerminal(),
	}, nil
}

// buildLogger creates an slog.Logger from the config log level and the CLI
// flags. log_level provides the baseline; --verbose and --quiet override it
// because CLI flags always win.
func buildLogger(configLevel string, flags CLIFlags) *slog.Logger {
	level := slog.LevelInfo

	switch configLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", describeError(err))
	os.Exit(1)
}

// describeError adds a hint for errors the user can act on.
func describeError(err error) error {
	switch {
	case errors.Is(err, nso.ErrCredentialAbsent):
		return fmt.Errorf("%w (run 's3gear login' to sign in)", err)
	case errors.Is(err, config.ErrPersistenceFailed):
		return fmt.Errorf("%w (check permissions on the config file)", err)
	default:
		return err
	}
}
