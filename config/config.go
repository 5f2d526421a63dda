package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAddress = "localhost:8080"

type Config struct {
	Address          string
	HTTPAddress      string
	LogLevel         slog.Level
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	QueueSize        int
}

func Default() Config {
	return Config{
		Address:          DefaultAddress,
		LogLevel:         slog.LevelInfo,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		QueueSize:        256,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("CHAT_ADDR"); v != "" {
		cfg.Address = v
	}
	cfg.HTTPAddress = getenv("CHAT_HTTP_ADDR")

	switch v := getenv("LOG_LEVEL"); v {
	case "":
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return Config{}, fmt.Errorf("config: LOG_LEVEL: unknown level %q", v)
	}

	var err error
	if cfg.HandshakeTimeout, err = duration(getenv, "CHAT_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = duration(getenv, "CHAT_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return Config{}, err
	}

	if v := getenv("CHAT_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("config: CHAT_QUEUE_SIZE: want a positive integer, got %q", v)
		}
		cfg.QueueSize = n
	}

	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s: must be positive, got %s", key, v)
	}
	return d, nil
}
