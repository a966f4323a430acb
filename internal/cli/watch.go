package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/refresh"
	"github.com/sandeepkv93/taskfuse/internal/scheduler"
	"github.com/sandeepkv93/taskfuse/internal/watch"
)

func newWatchCommand(f *flags) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the refresh and notification loop without the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(f)
			logger := stderrLogger(cfg)

			rt, err := newRuntime(cmd.Context(), cfg, logger, runtimeOptions{BellTo: os.Stdout})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			runner := watch.NewRunner(scheduler.NewEngine(16), rt.refresher, rt.center, rt.store, watch.Options{
				RefreshInterval:  cfg.RefreshInterval,
				ClearInterval:    cfg.ClearInterval,
				HistoryRetention: retention,
				Logger:           logger,
				OnSnapshot: func(snap refresh.Snapshot, err error) {
					for _, ev := range snap.Alerts {
						fmt.Fprintf(out, "[%s] %s\n", ev.Severity, ev.Message)
					}
				},
			})
			return runner.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&retention, "history-retention", 7*24*time.Hour, "drop notification history older than this (0 keeps all)")
	return cmd
}
