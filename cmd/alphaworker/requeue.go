package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/storage"
)

func requeueStuckCmd() *cli.Command {
	return &cli.Command{
		Name:  "requeue-stuck",
		Usage: "Reset running jobs not updated within the threshold back to pending",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Threshold since last update (0 uses queue.stuck_after)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(ctx, cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			olderThan := cmd.Duration("older-than")
			if olderThan <= 0 {
				olderThan = cfg.Queue.StuckAfterDuration()
			}

			storageManager, err := storage.NewStorageManager(ctx, logger, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer storageManager.Close()

			cutoff := time.Now().UTC().Add(-olderThan)
			requeued, err := storageManager.AnalysisQueueStorage().RequeueStuck(ctx, cutoff)
			if err != nil {
				return err
			}

			logger.Info().
				Int64("requeued", requeued).
				Str("older_than", olderThan.String()).
				Msg("Requeued stuck jobs")

			_, err = fmt.Fprintf(cmd.Root().Writer, "requeued %d job(s)\n", requeued)
			return err
		},
	}
}
