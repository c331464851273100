package server

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNewConfig verifies the built-in defaults.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(16*1024), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "json", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.IdleThreshold)
	assert.Equal(t, 30*time.Second, cfg.Rooms.ReapInterval)
	assert.Equal(t, 2*time.Second, cfg.Rooms.CloseDelay)
	assert.Equal(t, time.Second, cfg.Rooms.OwnerLeaveDelay)
	assert.Empty(t, cfg.Rooms.StealthPassword)
}

// TestNewConfigFromEnv verifies that every environment variable is honored.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("STORE_PATH", "/tmp/rooms.db")
	t.Setenv("STEALTH_PASSWORD", "letmein")
	t.Setenv("IDLE_THRESHOLD", "10m")
	t.Setenv("REAP_INTERVAL", "15")
	t.Setenv("CLOSE_DELAY", "500ms")
	t.Setenv("OWNER_LEAVE_DELAY", "3s")
	t.Setenv("SHUTDOWN_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/rooms.db", cfg.Store.Path)
	assert.Equal(t, "letmein", cfg.Rooms.StealthPassword)
	assert.Equal(t, 10*time.Minute, cfg.Rooms.IdleThreshold)
	assert.Equal(t, 15*time.Second, cfg.Rooms.ReapInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Rooms.CloseDelay)
	assert.Equal(t, 3*time.Second, cfg.Rooms.OwnerLeaveDelay)
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

// TestNewConfigFromEnvInvalidValues verifies that bad values fall back to
// the defaults.
func TestNewConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-5")
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0")
	t.Setenv("IDLE_THRESHOLD", "soon")
	t.Setenv("CLOSE_DELAY", "-1s")

	cfg := NewConfigFromEnv()
	def := NewConfig()

	assert.Equal(t, def.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
	assert.Equal(t, def.Rooms.IdleThreshold, cfg.Rooms.IdleThreshold)
	assert.Equal(t, def.Rooms.CloseDelay, cfg.Rooms.CloseDelay)
}

// TestParseDuration covers both accepted duration notations.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{" 5m ", 5 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"0", time.Minute},
		{"-3", time.Minute},
		{"", time.Minute},
		{"fast", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDuration(tt.in, time.Minute))
		})
	}
}

// TestSanitized verifies that zero values are replaced by defaults and that
// explicit values survive.
func TestSanitized(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := Config{AllowedOrigins: origins, Rooms: RoomConfig{CloseDelay: time.Millisecond}}.Sanitized()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, time.Millisecond, cfg.Rooms.CloseDelay)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.IdleThreshold)
	assert.Equal(t, "info", cfg.LogLevel)

	cfg.AllowedOrigins[0] = "changed"
	assert.Equal(t, "http://a.example", origins[0], "sanitized config owns its origins")
}

// TestSlogLevel maps the configured level names.
func TestSlogLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: name}.SlogLevel(), name)
	}
}
