package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"census-typology/internal/app"
	"census-typology/internal/config"
	"census-typology/internal/domain"
	"census-typology/internal/service/batch"
)

type runFlags struct {
	inputs     inputFlags
	failFast   bool
	storeys    bool
	dominant   bool
	outputDir  string
	publishURL string
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	f.inputs.register(fs)
	fs.BoolVar(&f.failFast, "fail-fast", false, "Stop the batch at the first failure")
	fs.BoolVar(&f.storeys, "storeys", false, "Also write tables with storey classes merged")
	fs.BoolVar(&f.dominant, "dominant", false, "Also write dominant-typology tables")
	fs.StringVar(&f.outputDir, "output-dir", "", "Directory for the output tables")
	fs.StringVar(&f.publishURL, "publish", "", "Publish outputs to file://, s3://, gs:// or az:// destination")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f.inputs.apply(cmd, cfg)
	fs := cmd.Flags()
	if fs.Changed("fail-fast") {
		cfg.FailFast = f.failFast
	}
	if fs.Changed("storeys") {
		cfg.Storeys = f.storeys
	}
	if fs.Changed("dominant") {
		cfg.Dominant = f.dominant
	}
	if fs.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if fs.Changed("publish") {
		cfg.PublishURL = f.publishURL
	}
}

func newRunCmd(g *globalOptions) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Distribute building counts over typologies for every selected municipality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			logger := newLogger(cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out, runErr := runBatch(ctx, app.Deps{Cfg: cfg, Logger: logger})
			if out != nil {
				if err := printOutcome(cmd, out); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	f.register(cmd)
	return cmd
}

// runBatch wires the application and runs one batch.
func runBatch(ctx context.Context, deps app.Deps) (*batch.Outcome, error) {
	a, err := app.New(ctx, deps)
	if err != nil {
		return nil, err
	}
	defer a.Close() //nolint:errcheck
	return a.Runner.Execute(ctx, a.Job())
}

func printOutcome(cmd *cobra.Command, out *batch.Outcome) error {
	var failures []domain.Failure
	var warnings []domain.Warning
	if out.Result != nil {
		failures = out.Result.Report.Failures
		warnings = out.Result.Report.Warnings
	}

	if getOutputFormat(cmd) == "json" {
		return printJSON(os.Stdout, map[string]interface{}{
			"run":      out.Run,
			"files":    out.Files,
			"failures": failures,
			"warnings": warnings,
		})
	}

	r := out.Run
	if err := printTable(os.Stdout,
		[]string{"run_id", "status", "processed", "rows", "failures", "warnings"},
		[][]string{{
			r.ID,
			r.Status,
			fmt.Sprintf("%d/%d", r.MunicipalitiesDone, r.MunicipalitiesTotal),
			strconv.Itoa(r.DisaggregatedRows),
			strconv.Itoa(len(failures)),
			strconv.Itoa(len(warnings)),
		}},
	); err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stdout)
		if err := printFailures(failures); err != nil {
			return err
		}
	}
	for _, p := range out.Files {
		fmt.Fprintf(os.Stdout, "wrote %s\n", p)
	}
	return nil
}

func printFailures(failures []domain.Failure) error {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		combination := ""
		if f.Combination != nil {
			combination = f.Combination.String()
		}
		block := ""
		if f.Block != nil {
			block = f.Block.Block
		}
		rows = append(rows, []string{strconv.Itoa(f.Municipality), f.Kind, combination, block, f.Message})
	}
	return printTable(os.Stdout, []string{"municipality", "kind", "combination", "block", "message"}, rows)
}
