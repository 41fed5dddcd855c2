package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd(a *app) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c := cron.New()
			_, err := c.AddFunc(spec, func() {
				r, cleanup, err := a.buildRunner(ctx, runOptions{})
				if err != nil {
					a.log.Error("scheduled run setup failed", zap.Error(err))
					return
				}
				defer cleanup()

				rep, err := r.Run(ctx, nil)
				if err != nil {
					a.log.Error("scheduled run failed", zap.Error(err))
					return
				}
				a.log.Info("scheduled run finished", zap.String("summary", rep.String()))
			})
			if err != nil {
				return err
			}

			a.log.Info("scheduler started", zap.String("cron", spec))
			c.Start()
			defer c.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctx.Done():
			}
			a.log.Info("scheduler stopping")
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "0 6 * * *", "cron expression for scheduled runs")
	return cmd
}
