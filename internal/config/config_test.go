package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func Test_FromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"SECRET_KEY": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "./data/library.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "*", cfg.FrontendURL)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, ":9090", cfg.TCPFeedAddr)
	assert.Equal(t, ":7070", cfg.UDPNotifyAddr)
	assert.Zero(t, cfg.SweepInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func Test_FromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"SECRET_KEY":     "s3cret",
		"PORT":           "8080",
		"JWT_EXPIRY":     "2h",
		"REDIS_ADDR":     "localhost:6379",
		"REDIS_DB":       "3",
		"SWEEP_INTERVAL": "15m",
		"LOG_LEVEL":      "debug",
		"SEED_FILE":      "./data/seed.json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "./data/seed.json", cfg.SeedFile)
}

func Test_FromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "SECRET_KEY is not set"},
		{"bad expiry", map[string]string{"SECRET_KEY": "x", "JWT_EXPIRY": "tomorrow"}, "JWT_EXPIRY"},
		{"negative sweep", map[string]string{"SECRET_KEY": "x", "SWEEP_INTERVAL": "-1m"}, "SWEEP_INTERVAL"},
		{"bad redis db", map[string]string{"SECRET_KEY": "x", "REDIS_DB": "one"}, "REDIS_DB"},
		{"bad log level", map[string]string{"SECRET_KEY": "x", "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
