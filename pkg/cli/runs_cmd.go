package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"census-typology/internal/app"
	"census-typology/internal/domain"
)

func newRunsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded batch runs",
	}
	cmd.AddCommand(newRunsListCmd(g))
	cmd.AddCommand(newRunsShowCmd(g))
	return cmd
}

func newRunsListCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			repo, ledger, err := app.OpenRuns(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ledger.Close() //nolint:errcheck

			runs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				if runs == nil {
					runs = []domain.Run{}
				}
				return printJSON(os.Stdout, runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, runRow(r))
			}
			return printTable(os.Stdout, runHeaders, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newRunsShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its failure report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			repo, ledger, err := app.OpenRuns(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ledger.Close() //nolint:errcheck

			run, err := repo.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			failures, err := repo.ListFailures(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				if failures == nil {
					failures = []domain.Failure{}
				}
				return printJSON(os.Stdout, map[string]interface{}{
					"run":      run,
					"failures": failures,
				})
			}
			if err := printTable(os.Stdout, runHeaders, [][]string{runRow(*run)}); err != nil {
				return err
			}
			if run.ErrorMessage != nil {
				fmt.Fprintf(os.Stdout, "\nerror: %s\n", *run.ErrorMessage)
			}
			if len(failures) > 0 {
				fmt.Fprintln(os.Stdout)
				return printFailures(failures)
			}
			return nil
		},
	}
}

var runHeaders = []string{"id", "status", "block_mode", "processed", "rows", "failures", "started", "duration"}

func runRow(r domain.Run) []string {
	duration := "-"
	if r.FinishedAt != nil {
		duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
	}
	return []string{
		r.ID,
		r.Status,
		strconv.FormatBool(r.BlockMode),
		fmt.Sprintf("%d/%d", r.MunicipalitiesDone, r.MunicipalitiesTotal),
		strconv.Itoa(r.DisaggregatedRows),
		strconv.Itoa(r.FailureCount),
		r.StartedAt.Local().Format(time.DateTime),
		duration,
	}
}
