package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"census-typology/internal/app"
	"census-typology/internal/domain"
	"census-typology/internal/service/batch"
)

func newScheduleCmd(g *globalOptions) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "schedule [cron-expression]",
		Short: "Re-run the batch on a cron schedule",
		Long: "Runs the batch every time the schedule fires, reloading the workbook and\n" +
			"the inventory each time so a refreshed inventory is picked up. The\n" +
			"expression defaults to the 'schedule' setting of the configuration.\n" +
			"Examples: \"0 3 * * *\", \"@daily\", \"@every 6h\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if len(args) == 1 {
				cfg.Schedule = args[0]
			}
			if cfg.Schedule == "" {
				return domain.ErrConfiguration("no schedule given")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s := batch.NewScheduler(func(ctx context.Context) error {
				out, err := runBatch(ctx, app.Deps{Cfg: cfg, Logger: logger})
				if out != nil {
					logger.Info("scheduled batch done", "run_id", out.Run.ID, "status", out.Run.Status)
				}
				return err
			}, logger.With("component", "scheduler"))

			if err := s.Start(ctx, cfg.Schedule); err != nil {
				return domain.ErrConfiguration("invalid schedule %q: %v", cfg.Schedule, err)
			}
			logger.Info("waiting for next batch", "next", s.Next().Format(time.DateTime))

			<-ctx.Done()
			s.Stop()
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
