// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBPath      string
	SecretKey   string
	JWTExpiry   time.Duration
	FrontendURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	TCPFeedAddr   string
	UDPNotifyAddr string

	// SweepInterval 0 disables the background sweeper.
	SweepInterval time.Duration
	LogLevel      slog.Level
	SeedFile      string
}

// Load reads .env from the working directory when present, then the
// environment. SECRET_KEY is required.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:          get("PORT", "4000"),
		DBPath:        get("DB_PATH", "./data/library.db"),
		SecretKey:     get("SECRET_KEY", ""),
		FrontendURL:   get("FRONTEND_URL", "*"),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		TCPFeedAddr:   get("TCP_FEED_ADDR", ":9090"),
		UDPNotifyAddr: get("UDP_NOTIFY_ADDR", ":7070"),
		SeedFile:      get("SEED_FILE", ""),
	}
	if cfg.SecretKey == "" {
		return cfg, errors.New("SECRET_KEY is not set")
	}

	var err error
	if cfg.JWTExpiry, err = duration(get("JWT_EXPIRY", "24h"), "JWT_EXPIRY"); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = duration(get("CACHE_TTL", "5m"), "CACHE_TTL"); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = duration(get("SWEEP_INTERVAL", "0"), "SWEEP_INTERVAL"); err != nil {
		return cfg, err
	}
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return cfg, fmt.Errorf("REDIS_DB: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func duration(v, key string) (time.Duration, error) {
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
