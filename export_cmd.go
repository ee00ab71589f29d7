package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s3gear/s3gear/internal/config"
	"github.com/s3gear/s3gear/internal/credential"
	"github.com/s3gear/s3gear/internal/export"
)

// flagOutput is the artifact path, shared by the root command and "export".
var flagOutput string

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagOutput, "output", "o", export.DefaultFileName, "output file path")
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write your gear inventory to gears.json",
		Long: `Fetch every weapon, headgear, clothing and shoes item you own and write it,
with the obfuscated account key, to gears.json (or --output).

Expired tokens are regenerated automatically from the stored session token.
This is also what running s3gear without a subcommand does.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	addExportFlags(cmd)

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	svc := NewServices(cc)

	if err := ensureLanguage(cc, svc.Prompter); err != nil {
		return err
	}

	return exportTo(ctx, cc, svc, flagOutput)
}

// exportTo prepares tokens, builds the document and writes it to path. No
// file is written unless every step succeeds.
func exportTo(ctx context.Context, cc *CLIContext, svc *Services, path string) error {
	if err := svc.Manager.Prepare(ctx); err != nil {
		return err
	}

	doc, err := export.NewExporter(svc.Manager, cc.Logger).Run(ctx)
	if err != nil {
		return err
	}

	if err := export.WriteFile(path, doc); err != nil {
		return err
	}

	cc.Statusf("Created %s with information about all your gears.\n", path)

	return nil
}

// ensureLanguage asks for the game language once, when acc_loc is unset.
// Without a terminal the default locale is used silently.
func ensureLanguage(cc *CLIContext, p *Prompter) error {
	if !cc.Store.Credentials().Locale.IsZero() {
		return nil
	}

	lang := credential.DefaultLocale.Lang

	if cc.Interactive {
		chosen, err := p.ChooseLanguage()
		if err != nil {
			return err
		}

		lang = chosen
	}

	loc := credential.Locale{Lang: lang, Country: credential.DefaultLocale.Country}

	if err := cc.Store.Update(func(c *config.Config) { c.AccountLocale = loc.String() }); err != nil {
		return fmt.Errorf("saving locale: %w", err)
	}

	cc.Logger.Info("locale set", "acc_loc", loc.String())

	return nil
}
