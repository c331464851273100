// Package server provides configuration helpers that define runtime defaults,
// validation, and room policy parameters for the chat relay.
package server

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
	Path   string
}

// RoomConfig holds the room lifecycle policy.
type RoomConfig struct {
	StealthPassword string
	IdleThreshold   time.Duration
	ReapInterval    time.Duration
	CloseDelay      time.Duration
	OwnerLeaveDelay time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	Store           StoreConfig
	Rooms           RoomConfig
	ShutdownTimeout time.Duration
	LogLevel        string
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 16 * 1024,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		Store: StoreConfig{
			Driver: "json",
			Path:   "data/rooms.json",
		},
		Rooms: RoomConfig{
			IdleThreshold:   5 * time.Minute,
			ReapInterval:    30 * time.Second,
			CloseDelay:      2 * time.Second,
			OwnerLeaveDelay: time.Second,
		},
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
	}
}

// Sanitized returns a copy of cfg with every unset or invalid field replaced
// by its default.
func (cfg Config) Sanitized() Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Rooms.IdleThreshold <= 0 {
		cfg.Rooms.IdleThreshold = def.Rooms.IdleThreshold
	}
	if cfg.Rooms.ReapInterval <= 0 {
		cfg.Rooms.ReapInterval = def.Rooms.ReapInterval
	}
	if cfg.Rooms.CloseDelay <= 0 {
		cfg.Rooms.CloseDelay = def.Rooms.CloseDelay
	}
	if cfg.Rooms.OwnerLeaveDelay <= 0 {
		cfg.Rooms.OwnerLeaveDelay = def.Rooms.OwnerLeaveDelay
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (cfg Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
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

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(driver))
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}

	// Empty keeps stealth joins disabled.
	cfg.Rooms.StealthPassword = os.Getenv("STEALTH_PASSWORD")
	if v := os.Getenv("IDLE_THRESHOLD"); v != "" {
		cfg.Rooms.IdleThreshold = parseDuration(v, cfg.Rooms.IdleThreshold)
	}
	if v := os.Getenv("REAP_INTERVAL"); v != "" {
		cfg.Rooms.ReapInterval = parseDuration(v, cfg.Rooms.ReapInterval)
	}
	if v := os.Getenv("CLOSE_DELAY"); v != "" {
		cfg.Rooms.CloseDelay = parseDuration(v, cfg.Rooms.CloseDelay)
	}
	if v := os.Getenv("OWNER_LEAVE_DELAY"); v != "" {
		cfg.Rooms.OwnerLeaveDelay = parseDuration(v, cfg.Rooms.OwnerLeaveDelay)
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		cfg.ShutdownTimeout = parseDuration(v, cfg.ShutdownTimeout)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go duration strings ("90s", "5m") or a bare number
// of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
