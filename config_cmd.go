package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s3gear/s3gear/internal/config"
	"github.com/s3gear/s3gear/internal/credential"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigLocaleCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigLocaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locale [LANGUAGE [COUNTRY]]",
		Short: "Show or set the game language and country",
		Long: `Without arguments, print the stored locale. With a language (one of
` + strings.Join(credential.SupportedLanguages, ", ") + `), store it; the country is kept unless given.

The language you set always wins over your account's. The country is replaced
by your account's country the next time tokens are generated.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runConfigLocale,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	return config.RenderEffective(cc.Store.Config(), cc.Store.Path(), cc.FGenURL(), cmd.OutOrStdout())
}

func runConfigLocale(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	current := cc.Store.Credentials().Locale

	if len(args) == 0 {
		if current.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", credential.DefaultLocale)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), current.OrDefault())

		return nil
	}

	lang, err := credential.NormalizeLanguage(args[0])
	if err != nil {
		return err
	}

	loc := credential.Locale{Lang: lang, Country: current.Country}

	if len(args) == 2 {
		country, err := credential.NormalizeCountry(args[1])
		if err != nil {
			return err
		}

		loc.Country = country
	}

	if loc.Country == "" {
		loc.Country = credential.DefaultLocale.Country
	}

	if err := cc.Store.Update(func(c *config.Config) { c.AccountLocale = loc.String() }); err != nil {
		return fmt.Errorf("saving locale: %w", err)
	}

	cc.Statusf("Locale set to %s.\n", loc)

	return nil
}
