package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/fuse"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/refresh"
)

func newCheckCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Refresh once, print every task's fuse and raise due alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(f)
			logger := stderrLogger(cfg)

			rt, err := newRuntime(cmd.Context(), cfg, logger, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			now := time.Now()
			snap, err := rt.refresher.Refresh(cmd.Context(), now)
			if err != nil && len(snap.Tasks) == 0 {
				return err
			}
			writeCheckReport(cmd.OutOrStdout(), now, snap)
			return nil
		},
	}
}

func writeCheckReport(w io.Writer, now time.Time, snap refresh.Snapshot) {
	if snap.Stale {
		stamp := "never"
		if !snap.FetchedAt.IsZero() {
			stamp = snap.FetchedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "offline: showing tasks cached at %s\n", stamp)
	}
	for _, t := range snap.Tasks {
		fmt.Fprintf(w, "%-28s %s\n", checkLabel(now, t), t.Title)
	}
	for _, ev := range snap.Alerts {
		fmt.Fprintf(w, "alert [%s] %s\n", ev.Severity, ev.Message)
	}
}

func checkLabel(now time.Time, t model.Task) string {
	if t.Done() {
		return "Completed"
	}
	res, ok := fuse.Compute(now, t.CreatedAt, t.DueAt, false)
	if !ok {
		return "No deadline"
	}
	return fmt.Sprintf("%3.0f%% %s", res.PercentRemaining, fuse.Label(res))
}
