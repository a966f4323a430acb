// Package config resolves runtime settings from defaults, an optional .env
// file and TASKFUSE_* environment variables.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const envPrefix = "TASKFUSE_"

// DedupKeyMode selects how notifications are keyed for suppression.
type DedupKeyMode string

const (
	DedupByTask    DedupKeyMode = "task"
	DedupByMessage DedupKeyMode = "message"
)

type Config struct {
	// Backend
	BaseURL     string
	Email       string
	Password    string
	TokenFile   string
	HTTPTimeout time.Duration
	// Location interprets backend timestamps that carry no offset.
	Location *time.Location

	// Breaker opens after this many consecutive failures.
	BreakerFailures int

	// Local cache
	DBPath string

	// Timers
	RefreshInterval time.Duration
	TickInterval    time.Duration
	ClearInterval   time.Duration

	// Notifications
	SuppressionWindow    time.Duration
	DisplayDuration      time.Duration
	SoonThreshold        time.Duration
	DedupKey             DedupKeyMode
	DesktopNotifications bool
	Bell                 bool

	// Optional shared infrastructure
	RedisURL     string
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel string
	LogFile  string
}

func Default() Config {
	dir := defaultDir()
	return Config{
		BaseURL:              "http://localhost:8000",
		TokenFile:            filepath.Join(dir, "token.json"),
		HTTPTimeout:          10 * time.Second,
		Location:             time.Local,
		BreakerFailures:      3,
		DBPath:               filepath.Join(dir, "taskfuse.db"),
		RefreshInterval:      30 * time.Second,
		TickInterval:         time.Second,
		ClearInterval:        time.Hour,
		SuppressionWindow:    time.Hour,
		DisplayDuration:      5 * time.Second,
		SoonThreshold:        time.Hour,
		DedupKey:             DedupByTask,
		DesktopNotifications: false,
		Bell:                 true,
		AMQPExchange:         "taskfuse.notifications",
		LogLevel:             "info",
		LogFile:              filepath.Join(dir, "taskfuse.log"),
	}
}

// Load reads .env when present and overlays the environment on Default.
func Load() Config {
	// Missing .env is fine.
	_ = godotenv.Load()
	return FromEnv(Default())
}

// FromEnv overlays TASKFUSE_* variables on base. Unparseable or
// out-of-range values leave the base value in place.
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnv("BASE_URL"); ok {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnv("EMAIL"); ok {
		cfg.Email = v
	}
	if v, ok := getEnv("PASSWORD"); ok {
		cfg.Password = v
	}
	if v, ok := getEnv("TOKEN_FILE"); ok {
		cfg.TokenFile = v
	}
	if v, ok := getEnv("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnv("TIMEZONE"); ok {
		if loc, err := time.LoadLocation(v); err == nil {
			cfg.Location = loc
		}
	}
	if v, ok := getEnvDuration("HTTP_TIMEOUT"); ok {
		cfg.HTTPTimeout = v
	}
	if v, ok := getEnvInt("BREAKER_FAILURES"); ok && v > 0 {
		cfg.BreakerFailures = v
	}
	if v, ok := getEnvDuration("REFRESH_INTERVAL"); ok {
		cfg.RefreshInterval = v
	}
	if v, ok := getEnvDuration("TICK_INTERVAL"); ok {
		cfg.TickInterval = v
	}
	if v, ok := getEnvDuration("CLEAR_INTERVAL"); ok {
		cfg.ClearInterval = v
	}
	if v, ok := getEnvDuration("SUPPRESSION_WINDOW"); ok {
		cfg.SuppressionWindow = v
	}
	if v, ok := getEnvDuration("DISPLAY_DURATION"); ok {
		cfg.DisplayDuration = v
	}
	if v, ok := getEnvDuration("SOON_THRESHOLD"); ok {
		cfg.SoonThreshold = v
	}
	if v, ok := getEnv("DEDUP_KEY"); ok {
		switch DedupKeyMode(strings.ToLower(v)) {
		case DedupByTask:
			cfg.DedupKey = DedupByTask
		case DedupByMessage:
			cfg.DedupKey = DedupByMessage
		}
	}
	if v, ok := getEnvBool("DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v, ok := getEnvBool("BELL"); ok {
		cfg.Bell = v
	}
	if v, ok := getEnv("REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := getEnv("AMQP_URL"); ok {
		cfg.AMQPURL = v
	}
	if v, ok := getEnv("AMQP_EXCHANGE"); ok {
		cfg.AMQPExchange = v
	}
	if v, ok := getEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnv("LOG_FILE"); ok {
		cfg.LogFile = v
	}
	return cfg
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskfuse"
	}
	return filepath.Join(home, ".config", "taskfuse")
}

func getEnv(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + name))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvDuration(name string) (time.Duration, bool) {
	raw, ok := getEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func getEnvBool(name string) (bool, bool) {
	raw, ok := getEnv(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
