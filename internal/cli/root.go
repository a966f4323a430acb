// Package cli exposes taskfuse as a cobra command tree.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/config"
)

type flags struct {
	baseURL  string
	dbPath   string
	logLevel string
}

// NewRootCommand builds the command tree. Running it without a subcommand
// opens the dashboard.
func NewRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "taskfuse",
		Short: "Terminal deadline dashboard for your task list",
		Long: `taskfuse polls your task backend, burns a fuse bar down toward each
deadline and raises a notification once per task when it is about to run out
or already has.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, loadConfig(f))
		},
	}
	root.PersistentFlags().StringVar(&f.baseURL, "base-url", "", "backend base URL (TASKFUSE_BASE_URL)")
	root.PersistentFlags().StringVar(&f.dbPath, "db", "", "local cache path (TASKFUSE_DB_PATH)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error (TASKFUSE_LOG_LEVEL)")

	root.AddCommand(
		newTUICommand(f),
		newWatchCommand(f),
		newCheckCommand(f),
		newLoginCommand(f),
		newHistoryCommand(f),
		newShowCommand(f),
	)
	return root
}

func loadConfig(f *flags) config.Config {
	cfg := config.Load()
	if f.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(f.baseURL, "/")
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg
}

func stderrLogger(cfg config.Config) *slog.Logger {
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
