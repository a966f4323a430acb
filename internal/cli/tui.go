package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/config"
	"github.com/sandeepkv93/taskfuse/internal/notify"
	"github.com/sandeepkv93/taskfuse/internal/update"
)

func newTUICommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the deadline dashboard (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, loadConfig(f))
		},
	}
}

func runTUI(cmd *cobra.Command, cfg config.Config) error {
	var logOut io.Writer = io.Discard
	if logFile, err := openLogFile(cfg.LogFile); err == nil {
		defer logFile.Close()
		logOut = logFile
	}
	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	alerts := notify.NewChanSink(32)
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{BellTo: os.Stdout})
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.center.AddSink(alerts)

	user := rt.user
	meCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if me, err := rt.client.Me(meCtx); err == nil {
		user = me.Email
	} else {
		logger.Warn("could not load profile", "error", err)
	}
	cancel()

	m := update.NewModel(update.Deps{
		Refresher: rt.refresher,
		Completer: rt.client,
		Editor:    rt.client,
		Seen:      rt.center,
		Alerts:    alerts.C(),
		User:      user,
	}, update.Options{
		RefreshInterval: cfg.RefreshInterval,
		TickInterval:    cfg.TickInterval,
		ClearInterval:   cfg.ClearInterval,
	})

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("taskfuse dashboard failed: %w", err)
	}
	if dropped := alerts.Dropped(); dropped > 0 {
		logger.Warn("dashboard dropped alerts", "count", dropped)
	}
	return nil
}
