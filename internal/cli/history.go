package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/storage"
)

func newHistoryCommand(f *flags) *cobra.Command {
	var limit int
	var severity string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently shown notifications from the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if severity != "" {
				if _, err := model.ParseSeverity(severity); err != nil {
					return err
				}
			}
			cfg := loadConfig(f)
			stderrLogger(cfg)

			store, err := storage.OpenSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open local cache: %w", err)
			}
			defer store.Close()

			items, err := store.ListNotifications(cmd.Context(), storage.NotificationListFilter{
				Severity: severity,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			writeHistory(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	cmd.Flags().StringVar(&severity, "severity", "", "only show this severity")
	return cmd
}

func writeHistory(w io.Writer, items []storage.Notification) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no notifications recorded")
		return
	}
	for _, n := range items {
		fmt.Fprintf(w, "%s  %-7s  %s\n", n.ShownAt.Local().Format("2006-01-02 15:04:05"), n.Severity, n.Message)
	}
}
