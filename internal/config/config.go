// Package config loads coursetrack configuration from command-line flags,
// environment variables, an optional .env file and built-in defaults.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App           AppConfig
	Logger        LoggerConfig
	Storage       StorageConfig
	Server        ServerConfig
	Playback      PlaybackConfig
	Notifications NotificationConfig
	Reminder      ReminderConfig
	RateLimit     RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects where the state blob lives.
type StorageConfig struct {
	Path    string // directory holding the database (default: ~/.coursetrack)
	Backend string // badger or sqlite
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // zero disables, SSE streams stay open indefinitely
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// PlaybackConfig tunes the sampling protocol.
type PlaybackConfig struct {
	SampleInterval  time.Duration // how often the player position is read
	PersistEvery    int           // persist when floor(seconds) is a multiple of this
	ResumeRewind    float64       // seconds rewound when resuming a saved position
	CompletionRatio float64       // fraction of duration that counts as completed
}

// NotificationConfig bounds the in-memory notification buffer.
type NotificationConfig struct {
	Capacity int
	AutoRead time.Duration
}

// ReminderConfig controls the daily "keep learning" reminder.
type ReminderConfig struct {
	Enabled  bool
	Schedule string // standard 5-field cron expression
}

// RateLimitConfig limits progress writes per client.
type RateLimitConfig struct {
	Enabled      bool
	WritesPerMin int
	Burst        int
}

// LoadConfig reads configuration from os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("coursetrack", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	storagePath := fs.String("storage-path", "", "Directory for the local database")
	backend := fs.String("storage-backend", "", "Storage backend (badger, sqlite)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	sampleInterval := fs.String("sample-interval", "", "Player sampling interval (default: 1s)")
	reminderEnabled := fs.String("reminders", "", "Enable daily reminders (default: true)")
	reminderSchedule := fs.String("reminder-schedule", "", "Cron schedule for reminders (default: 0 19 * * *)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Path:    getConfigValue(*storagePath, "STORAGE_PATH", ""),
			Backend: strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
		Playback: PlaybackConfig{
			PersistEvery:    getIntConfigValue("", "PLAYBACK_PERSIST_EVERY", 5),
			ResumeRewind:    getFloatConfigValue("", "PLAYBACK_RESUME_REWIND", 2),
			CompletionRatio: getFloatConfigValue("", "PLAYBACK_COMPLETION_RATIO", 0.9),
		},
		Notifications: NotificationConfig{
			Capacity: getIntConfigValue("", "NOTIFICATIONS_CAPACITY", 10),
		},
		Reminder: ReminderConfig{
			Enabled:  getBoolConfigValue(*reminderEnabled, "REMINDER_ENABLED", true),
			Schedule: getConfigValue(*reminderSchedule, "REMINDER_SCHEDULE", "0 19 * * *"),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getBoolConfigValue("", "RATE_LIMIT_ENABLED", true),
			WritesPerMin: getIntConfigValue("", "RATE_LIMIT_WRITES_PER_MIN", 600),
			Burst:        getIntConfigValue("", "RATE_LIMIT_BURST", 30),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Playback.SampleInterval, *sampleInterval, "PLAYBACK_SAMPLE_INTERVAL", "1s"},
		{&cfg.Notifications.AutoRead, "", "NOTIFICATIONS_AUTO_READ", "5s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandStoragePath(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and in range.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.Path == "" {
		return errors.New("storage path cannot be empty after expansion")
	}
	if c.Storage.Backend != BackendBadger && c.Storage.Backend != BackendSQLite {
		return fmt.Errorf("invalid storage backend: %s (must be badger or sqlite)", c.Storage.Backend)
	}

	if c.Playback.SampleInterval <= 0 {
		return errors.New("playback sample interval must be positive")
	}
	if c.Playback.PersistEvery <= 0 {
		return errors.New("playback persist interval must be positive")
	}
	if c.Playback.ResumeRewind < 0 {
		return errors.New("playback resume rewind cannot be negative")
	}
	if c.Playback.CompletionRatio <= 0 || c.Playback.CompletionRatio > 1 {
		return fmt.Errorf("completion ratio %.2f out of range (0, 1]", c.Playback.CompletionRatio)
	}

	if c.Notifications.Capacity <= 0 {
		return errors.New("notification capacity must be positive")
	}
	if c.Notifications.AutoRead <= 0 {
		return errors.New("notification auto-read delay must be positive")
	}

	if c.Reminder.Enabled && strings.TrimSpace(c.Reminder.Schedule) == "" {
		return errors.New("reminder schedule is required when reminders are enabled")
	}

	if c.RateLimit.Enabled && (c.RateLimit.WritesPerMin <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate limit writes per minute and burst must be positive")
	}

	return nil
}

// expandStoragePath expands ~ and makes the path absolute, defaulting to ~/.coursetrack.
func (c *Config) expandStoragePath() error {
	path := c.Storage.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Storage.Path = filepath.Join(home, ".coursetrack")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	c.Storage.Path = filepath.Clean(abs)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue treats "true", "1" and "yes" (any case) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path. Variables already present in
// the environment win over the file.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
