package main

import (
	"context"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/urfave/cli/v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
)

// App returns the root command.
func App() *cli.Command {
	return &cli.Command{
		Name:    "alphaworker",
		Version: common.GetFullVersion(),
		Usage:   "Run the AlphaStocks analysis queue worker",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file (repeatable, later files override earlier ones)",
				Sources: cli.EnvVars("ALPHASTOCKS_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			scheduleCmd(),
			migrateCmd(),
			requeueStuckCmd(),
			versionCmd(),
		},
	}
}

// loadConfig runs the startup sequence shared by every command:
// defaults -> config files -> env -> CLI flags, then logger and banner.
func loadConfig(_ context.Context, cmd *cli.Command) (*common.Config, arbor.ILogger, error) {
	paths := cmd.StringSlice("config")
	if len(paths) == 0 {
		paths = discoverConfig()
	}

	cfg, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, nil, err
	}

	if level := strings.TrimSpace(cmd.String("log-level")); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	logger := common.InitLogger(cfg)
	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Str("storage_type", cfg.Storage.Type).
		Str("log_level", cfg.Logging.Level).
		Int("max_jobs", cfg.Queue.MaxJobs).
		Bool("addons_enabled", cfg.Analysis.AddonsEnabled).
		Msg("Resolved configuration")

	return cfg, logger, nil
}

// discoverConfig checks the working directory, then deployments/local.
func discoverConfig() []string {
	for _, candidate := range []string{"alphaworker.toml", "deployments/local/alphaworker.toml"} {
		if _, err := os.Stat(candidate); err == nil {
			return []string{candidate}
		}
	}
	return nil
}
