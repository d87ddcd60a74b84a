package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	serverrun "github.com/m2mobi/apnsd/internal/cmd/server"
	cfgpkg "github.com/m2mobi/apnsd/internal/config"
	"github.com/m2mobi/apnsd/internal/journal"
	logpkg "github.com/m2mobi/apnsd/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "apnsd",
		Short: "apnsd dispatches push notifications through a worker pool",
		Long:  "apnsd partitions outbound APNs deliveries across a pool of workers sharing a bounded queue store.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch a batch of notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			input, _ := cmd.Flags().GetString("input")
			workers, _ := cmd.Flags().GetInt("workers")
			environment, _ := cmd.Flags().GetString("environment")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			cfg.SetWorkerCount(workers)
			if environment != "" {
				cfg.Environment = environment
			}

			logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: logLevel, Format: logFormat})
			if err != nil {
				return err
			}
			// Pebble logs through the stdlib logger
			logpkg.RedirectStdLog(logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serverrun.Run(ctx, serverrun.Options{
				Config:    cfg,
				InputPath: input,
				Logger:    logger,
			})
		},
	}
	runCmd.Flags().String("config", os.Getenv("APNSD_CONFIG"), "Path to JSON config file")
	runCmd.Flags().String("input", "-", "JSON file with an array of notifications (default stdin)")
	runCmd.Flags().Int("workers", 0, "Worker pool size (overrides config; non-positive ignored)")
	runCmd.Flags().String("environment", "", "Gateway environment: production|sandbox")
	runCmd.Flags().String("log-level", os.Getenv("APNSD_LOG_LEVEL"), "Log level: debug|info|warn|error")
	runCmd.Flags().String("log-format", os.Getenv("APNSD_LOG_FORMAT"), "Log format: text|json")
	rootCmd.AddCommand(runCmd)

	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Print journaled delivery failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("journal-dir")
			limit, _ := cmd.Flags().GetInt("limit")
			if dir == "" {
				dir = os.Getenv("APNSD_JOURNAL_DIR")
			}

			j, err := journal.Open(dir)
			if err != nil {
				return err
			}
			defer j.Close()

			records, err := j.Scan(limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Println(r.String())
			}
			return nil
		},
	}
	errorsCmd.Flags().String("journal-dir", "", "Journal directory")
	errorsCmd.Flags().Int("limit", 0, "Maximum records to print (0 = all)")
	rootCmd.AddCommand(errorsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
