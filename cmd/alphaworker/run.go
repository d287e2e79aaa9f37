package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/app"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/queue"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process one batch of pending analysis jobs and print the run summary",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-jobs",
				Usage: "Batch size for this invocation (0 uses queue.max_jobs)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(ctx, cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Worker.Run(ctx, int(cmd.Int("max-jobs")), queue.RunSourceManual)
			if err != nil {
				return runError(err)
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("encode run summary: %w", err)
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
			return err
		},
	}
}

// runError marks a run that aborted before claiming anything, so a failed
// candidate query is not mistaken for a partially processed batch.
func runError(err error) error {
	if queue.IsFetchError(err) {
		return fmt.Errorf("run aborted before any job was claimed: %w", err)
	}
	return err
}
