package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/refresh"
	"github.com/sandeepkv93/taskfuse/internal/storage"
	"github.com/sandeepkv93/taskfuse/internal/views"
)

func newShowCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one cached task with its fuse and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			cfg := loadConfig(f)
			stderrLogger(cfg)

			var store storage.Repository
			store, err = storage.OpenSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open local cache: %w", err)
			}
			defer store.Close()

			return showTask(cmd, store, id, time.Now())
		},
	}
}

func showTask(cmd *cobra.Command, store storage.Repository, id int64, now time.Time) error {
	row, err := store.GetTask(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("task %d is not in the local cache; run `taskfuse check` to refresh", id)
	}
	if err != nil {
		return err
	}
	writeTask(cmd.OutOrStdout(), now, refresh.FromStorage([]storage.Task{row})[0])
	return nil
}

func writeTask(w io.Writer, now time.Time, t model.Task) {
	fmt.Fprintf(w, "#%d %s\n", t.ID, t.Title)
	due := "none"
	if t.DueAt != nil {
		due = t.DueAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "due:    %s\n", due)
	fmt.Fprintf(w, "status: %s\n", checkLabel(now, t))
	if body := views.RenderMarkdown(t.Description, 80); body != "" {
		fmt.Fprintf(w, "\n%s\n", body)
	}
}
