package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3gear/s3gear/internal/config"
	"github.com/s3gear/s3gear/internal/nso"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must either:
//   - Set globals AFTER newRootCmd() returns (direct function tests), or
//   - Use cmd.SetArgs() + cmd.Execute() to let Cobra parse flags.
//
// Setting a global before newRootCmd() and expecting it to survive is a bug.

// newTestCLIContext builds a CLIContext over a fresh config file in a temp
// directory. stdin feeds the prompts.
func newTestCLIContext(t *testing.T, stdin string, interactive bool) *CLIContext {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := config.Open(path, nil, logger)
	require.NoError(t, err)

	return &CLIContext{
		Store:       store,
		Logger:      logger,
		Stdin:       strings.NewReader(stdin),
		Stderr:      &bytes.Buffer{},
		Interactive: interactive,
	}
}

// stderrOf returns what the command printed to the CLIContext's stderr.
func stderrOf(cc *CLIContext) string {
	return cc.Stderr.(*bytes.Buffer).String()
}

// executeRoot runs the root command with args and returns stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

// --- buildLogger tests ---

func TestBuildLogger_Default(t *testing.T) {
	logger := buildLogger("", CLIFlags{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		off     slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"info", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := buildLogger(tt.level, CLIFlags{})

			assert.True(t, logger.Handler().Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Handler().Enabled(context.Background(), tt.off))
		})
	}
}

func TestBuildLogger_VerboseOverridesConfig(t *testing.T) {
	logger := buildLogger("error", CLIFlags{Verbose: true})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverridesConfig(t *testing.T) {
	logger := buildLogger("debug", CLIFlags{Quiet: true})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

// --- describeError tests ---

func TestDescribeError_CredentialAbsent(t *testing.T) {
	err := describeError(fmt.Errorf("wrapped: %w", nso.ErrCredentialAbsent))

	require.ErrorIs(t, err, nso.ErrCredentialAbsent)
	assert.Contains(t, err.Error(), "s3gear login")
}

func TestDescribeError_PersistenceFailed(t *testing.T) {
	err := describeError(config.ErrPersistenceFailed)

	require.ErrorIs(t, err, config.ErrPersistenceFailed)
	assert.Contains(t, err.Error(), "permissions")
}

func TestDescribeError_PassThrough(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, boom, describeError(boom))
}

// --- CLIContext tests ---

func TestCLIContext_RoundTrip(t *testing.T) {
	cc := &CLIContext{Flags: CLIFlags{Quiet: true}}
	ctx := withCLIContext(context.Background(), cc)

	assert.Same(t, cc, mustCLIContext(ctx))
}

func TestMustCLIContext_PanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestCLIContext_Statusf(t *testing.T) {
	cc := newTestCLIContext(t, "", false)
	cc.Statusf("hello %s\n", "world")
	assert.Equal(t, "hello world\n", stderrOf(cc))

	cc.Flags.Quiet = true
	cc.Statusf("hidden\n")
	assert.Equal(t, "hello world\n", stderrOf(cc))
}

func TestCLIContext_FGenURL(t *testing.T) {
	cc := newTestCLIContext(t, "", false)
	assert.Equal(t, config.DefaultFGenURL, cc.FGenURL())

	cc.Env.FGenURL = "https://env.example/f"
	assert.Equal(t, "https://env.example/f", cc.FGenURL())

	cc.Flags.FGenURL = "https://flag.example/f"
	assert.Equal(t, "https://flag.example/f", cc.FGenURL())
}

// --- root command tests ---

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"export", "login", "logout", "status", "config"} {
		assert.Contains(t, names, want)
	}

	assert.NotNil(t, cmd.Flags().Lookup("output"), "root command exports by default")
}

func TestRootCmd_CreatesConfigOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := executeRoot(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, config.DefaultFGenURL)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `f_gen = "https://api.imink.app/f"`)
}

func TestRootCmd_InvalidFGenFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := executeRoot(t, "--config", path, "--f-gen", "not a url", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--f-gen")
}

func TestRootCmd_MalformedConfigIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("gtoken = [unterminated"), 0o600))

	_, err := executeRoot(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "gtoken = [unterminated", string(data), "a malformed file must not be overwritten")
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := executeRoot(t, "--config", path, "unexpected")
	require.Error(t, err)
}
