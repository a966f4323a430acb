package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sandeepkv93/taskfuse/internal/api"
	"github.com/sandeepkv93/taskfuse/internal/config"
	"github.com/sandeepkv93/taskfuse/internal/deadline"
	"github.com/sandeepkv93/taskfuse/internal/dedup"
	"github.com/sandeepkv93/taskfuse/internal/notify"
	"github.com/sandeepkv93/taskfuse/internal/refresh"
	"github.com/sandeepkv93/taskfuse/internal/storage"
	"golang.org/x/oauth2"
)

var ErrNotLoggedIn = errors.New("not logged in: run `taskfuse login` or set TASKFUSE_EMAIL and TASKFUSE_PASSWORD")

// runtime holds everything a command needs, built once per invocation.
type runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	store     storage.Repository
	client    *api.Client
	center    *notify.Center
	refresher *refresh.Refresher
	user      string
	closers   []func() error
}

type runtimeOptions struct {
	// BellTo receives the terminal bell for urgent alerts.
	BellTo io.Writer
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openLogFile appends to the configured log file; the dashboard owns stdout.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func resolveTokenSource(ctx context.Context, cfg config.Config) (oauth2.TokenSource, string, error) {
	if cfg.Email != "" && cfg.Password != "" {
		return api.PasswordSource(ctx, cfg.BaseURL, cfg.Email, cfg.Password), cfg.Email, nil
	}
	creds, err := api.LoadCredentials(cfg.TokenFile)
	if err != nil {
		if errors.Is(err, api.ErrNoToken) {
			return nil, "", ErrNotLoggedIn
		}
		return nil, "", err
	}
	if creds.BaseURL != "" && creds.BaseURL != cfg.BaseURL {
		return nil, "", fmt.Errorf("stored token is for %s, not %s: %w", creds.BaseURL, cfg.BaseURL, ErrNotLoggedIn)
	}
	return api.StaticSource(creds.Token), creds.Email, nil
}

func buildSuppressor(ctx context.Context, cfg config.Config, logger *slog.Logger) (dedup.Suppressor, func() error) {
	if cfg.RedisURL == "" {
		return dedup.NewCache(cfg.SuppressionWindow), nil
	}
	client, err := dedup.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory suppression", "error", err)
		return dedup.NewCache(cfg.SuppressionWindow), nil
	}
	return dedup.NewRedisSuppressor(client, dedup.DefaultRedisPrefix, cfg.SuppressionWindow), client.Close
}

func checkerFor(cfg config.Config) deadline.Checker {
	keys := deadline.KeyByTask
	if cfg.DedupKey == config.DedupByMessage {
		keys = deadline.KeyByMessage
	}
	return deadline.NewChecker(cfg.SoonThreshold, keys)
}

func clientOptions(cfg config.Config, logger *slog.Logger) api.Options {
	return api.Options{
		Timeout:         cfg.HTTPTimeout,
		BreakerFailures: cfg.BreakerFailures,
		Location:        cfg.Location,
		Logger:          logger,
	}
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, opts runtimeOptions) (*runtime, error) {
	source, user, err := resolveTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, user: user}

	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	rt.client = api.NewClient(cfg.BaseURL, source, clientOptions(cfg, logger))

	suppressor, closeSuppressor := buildSuppressor(ctx, cfg, logger)
	if closeSuppressor != nil {
		rt.closers = append(rt.closers, closeSuppressor)
	}

	sinks := []notify.Sink{
		notify.LogSink{Logger: logger},
		notify.HistorySink{Store: store},
	}
	if cfg.Bell && opts.BellTo != nil {
		sinks = append(sinks, notify.BellSink{W: opts.BellTo})
	}
	if cfg.DesktopNotifications {
		sinks = append(sinks, notify.NewDesktopSink(int(cfg.DisplayDuration.Milliseconds())))
	}
	if cfg.AMQPURL != "" {
		sink, err := notify.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("amqp fan-out disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
			rt.closers = append(rt.closers, sink.Close)
		}
	}

	rt.center = notify.NewCenter(suppressor, logger, sinks...).WithDisplayDuration(cfg.DisplayDuration)
	rt.refresher = refresh.New(rt.client, store, checkerFor(cfg), rt.center, logger)
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}
