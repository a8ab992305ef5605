package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"census-typology/internal/app"
	"census-typology/internal/domain"
	"census-typology/internal/scheme"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	f := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the classification scheme and inputs without processing",
		Long: "Loads the workbook, the municipality list and the inventory, resolves the\n" +
			"scheme of every selected municipality and reports lookup failures and\n" +
			"distributions that do not sum to 100%. No output tables are written.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			logger := newLogger(cfg)

			in, err := app.LoadInputs(cmd.Context(), app.Deps{Cfg: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer in.Close() //nolint:errcheck

			report := scheme.CheckScheme(in.Resolver, in.Codes())

			present, err := in.Counts.Municipalities(cmd.Context())
			if err != nil {
				return err
			}
			inInventory := make(map[int]bool, len(present))
			for _, c := range present {
				inInventory[c] = true
			}
			for _, m := range in.Municipalities {
				if !inInventory[m.Code] {
					report.Warnings = append(report.Warnings, domain.Warning{
						Municipality: m.Code,
						Message:      "no buildings in the inventory",
					})
				}
			}

			if err := printReport(cmd, len(in.Municipalities), report); err != nil {
				return err
			}
			if n := len(report.Failures); n > 0 {
				return fmt.Errorf("validation found %d failure(s)", n)
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func printReport(cmd *cobra.Command, municipalities int, report domain.Report) error {
	if getOutputFormat(cmd) == "json" {
		failures := report.Failures
		if failures == nil {
			failures = []domain.Failure{}
		}
		warnings := report.Warnings
		if warnings == nil {
			warnings = []domain.Warning{}
		}
		return printJSON(os.Stdout, map[string]interface{}{
			"municipalities": municipalities,
			"failures":       failures,
			"warnings":       warnings,
		})
	}

	if len(report.Failures) > 0 {
		if err := printFailures(report.Failures); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
	}
	if len(report.Warnings) > 0 {
		rows := make([][]string, 0, len(report.Warnings))
		for _, w := range report.Warnings {
			combination := ""
			if w.Combination != nil {
				combination = w.Combination.String()
			}
			rows = append(rows, []string{strconv.Itoa(w.Municipality), combination, w.Message})
		}
		if err := printTable(os.Stdout, []string{"municipality", "combination", "warning"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
	}
	fmt.Fprintf(os.Stdout, "%d municipalities checked: %d failure(s), %d warning(s)\n",
		municipalities, len(report.Failures), len(report.Warnings))
	return nil
}
