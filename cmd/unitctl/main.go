package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/content-unit/pkg/contentunit"
	"github.com/tendant/content-unit/pkg/contentunit/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand(&cli{out: os.Stdout})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the service shared by every subcommand. A nil service is built
// from the environment before the first command runs.
type cli struct {
	service contentunit.Service
	out     io.Writer
	json    bool
	close   func()
}

func NewRootCommand(c *cli) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "unitctl",
		Short: "Manage content units from the command line",
		Long: `unitctl creates, edits and removes content units directly against the
configured document repository and asset store.

Backends are selected with the same environment variables as the server:
DATABASE_URL (memory, postgres://..., sqlite://path) and STORAGE_URL
(memory://, file://..., s3://..., minio://...). The in-memory defaults only
live for a single invocation; use sqlite:// and file:// for local work.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.service != nil {
				return nil
			}
			return c.init(cmd.Context(), verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.close != nil {
				c.close()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&c.json, "json", false, "print results as JSON")

	rootCmd.AddCommand(NewCreateCommand(c))
	rootCmd.AddCommand(NewUpdateCommand(c))
	rootCmd.AddCommand(NewDeleteCommand(c))
	rootCmd.AddCommand(NewGetCommand(c))
	rootCmd.AddCommand(NewListCommand(c))
	rootCmd.AddCommand(NewPreviewCommand(c))

	return rootCmd
}

func (c *cli) init(ctx context.Context, verbose bool) error {
	cfg, err := config.Load(config.WithEnv(), config.WithEventLogging(false), config.WithMetrics(false))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if verbose {
		logger.Debug("Configuration from environment",
			"database", cfg.DatabaseType, "storage", cfg.Storage.Type)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	comps, err := cfg.Build(ctx, logger)
	if err != nil {
		return err
	}
	c.service = comps.Service
	c.close = comps.Close
	return nil
}
