package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/app"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
)

func scheduleCmd() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Run batches on a cron schedule until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron expression (5 fields), overrides scheduler.schedule",
			},
			&cli.BoolFlag{
				Name:  "run-now",
				Usage: "Run one batch immediately after starting",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(ctx, cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if v := cmd.String("schedule"); v != "" {
				cfg.Scheduler.Schedule = v
			}
			if cfg.Scheduler.Schedule == "" {
				return &common.ConfigurationError{Field: "scheduler.schedule"}
			}
			if err := common.ValidateJobSchedule(cfg.Scheduler.Schedule); err != nil {
				return &common.ConfigurationError{Field: "scheduler.schedule", Err: err}
			}

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.SchedulerService.Start(cfg.Scheduler.Schedule); err != nil {
				return err
			}
			if cmd.Bool("run-now") {
				application.SchedulerService.TriggerNow()
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Str("schedule", cfg.Scheduler.Schedule).
				Msg("Scheduler running - Press Ctrl+C to stop")

			<-ctx.Done()
			logger.Info().Msg("Interrupt signal received")

			return application.SchedulerService.Stop()
		},
	}
}
