package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/s3gear/s3gear/internal/credential"
	"github.com/s3gear/s3gear/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with your Nintendo Account and generate tokens",
		Long: `Open the Nintendo Account sign-in page, paste back the "Select this account"
link, and store the resulting session token. Fresh gtoken and bulletToken are
generated right away.

Type "skip" instead of a link to enter gtoken and bulletToken by hand.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token and tokens",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	ctx := shutdownContext(cmd.Context(), logger)

	svc := NewServices(cc)

	logger.Info("login started", slog.String("config", cc.Store.Path()))

	if err := ensureLanguage(cc, svc.Prompter); err != nil {
		return err
	}

	sessionToken, err := svc.Prompter.Login(ctx)
	if err != nil {
		return err
	}

	creds := cc.Store.Credentials().WithoutTokens()
	creds.Session = sessionToken

	if err := cc.Store.SaveCredentials(creds); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}

	if err := svc.Manager.Refresh(ctx, session.ReasonForced); err != nil {
		return err
	}

	if sessionToken == credential.ManualSession {
		cc.Statusf("Saved manually entered tokens to %s.\n", cc.Store.Path())
	} else {
		cc.Statusf("Login successful. Tokens saved to %s.\n", cc.Store.Path())
	}

	logger.Info("login successful")

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	logger.Info("logout started", slog.String("config", cc.Store.Path()))

	creds := cc.Store.Credentials()
	if creds.Session == "" && !creds.HasTokens() {
		cc.Statusf("Not logged in.\n")
		return nil
	}

	creds.Session = ""

	if err := cc.Store.SaveCredentials(creds.WithoutTokens()); err != nil {
		return fmt.Errorf("removing credentials: %w", err)
	}

	logger.Info("logout successful")
	cc.Statusf("Logged out.\n")

	return nil
}
