package app

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCommand はriflelogのコマンドツリーを生成する。
// サブコマンドを省略した場合はserveとして起動する。
// logWriterはJSON構造化ログの出力先。
func NewRootCommand(logWriter io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "riflelog",
		Short:         "Rifle shooting logbook server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, logWriter)
		},
	}

	root.AddCommand(newServeCommand(logWriter))
	root.AddCommand(newMigrateCommand(logWriter))
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newStatsCommand(logWriter))
	return root
}

func serve(cmd *cobra.Command, logWriter io.Writer) error {
	cfg, err := Init(logWriter)
	if err != nil {
		return err
	}

	slog.Info("starting application",
		slog.String("command", "serve"),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)
	return runServe(cmd.Context(), cfg)
}

func newServeCommand(logWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, logWriter)
		},
	}
}

func newMigrateCommand(logWriter io.Writer) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage hosted database migrations",
		Args:  cobra.NoArgs,
		// サブコマンド省略時はupとして扱う
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateRun(cmd, logWriter, "up", 0)
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateRun(cmd, logWriter, "up", 0)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateRun(cmd, logWriter, "down", steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	migrate.AddCommand(down)

	migrate.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateRun(cmd, logWriter, "version", 0)
		},
	})

	return migrate
}

func migrateRun(cmd *cobra.Command, logWriter io.Writer, direction string, steps int) error {
	cfg, err := Init(logWriter)
	if err != nil {
		return err
	}
	return runMigrate(cfg, direction, steps, cmd.OutOrStdout())
}

// newHealthcheckCommand は軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHealthcheck(healthcheckPort())
		},
	}
}

func newStatsCommand(logWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <subject>",
		Short: "Print rolling averages and best session for a shooter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(logWriter)
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}
