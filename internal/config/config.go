// Package config loads server settings from the environment, after reading an
// optional .env file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ReactionScope decides who hears about reactions and read receipts.
type ReactionScope string

const (
	// ScopeGlobal broadcasts to every connection.
	ScopeGlobal ReactionScope = "global"
	// ScopeRoom broadcasts only to sessions currently in the message's room.
	ScopeRoom ReactionScope = "room"
)

// Defaults.
const (
	DefaultServerAddr      = ":8080"
	DefaultRooms           = "general,random,tech"
	DefaultRoom            = "general"
	DefaultEnvFile         = ".env"
	DefaultMaxMessageBytes = 1 << 20
	DefaultMaxFileBytes    = 512 << 10
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultAllowedFileTypes are the upload types accepted when
// ALLOWED_FILE_TYPES is unset. "*" accepts any type.
const DefaultAllowedFileTypes = "image/png,image/jpeg,image/gif,image/webp,application/pdf,text/plain,application/zip,application/octet-stream"

// Provider exposes the server configuration.
type Provider interface {
	GetServerAddr() string
	GetRooms() []string
	GetDefaultRoom() string
	GetAllowedOrigins() []string
	GetMaxMessageBytes() int64
	GetMaxFileBytes() int
	GetAllowedFileTypes() []string
	GetReactionScope() ReactionScope
	GetEnvFile() string
	GetShutdownTimeout() time.Duration
}

// Config holds all configuration for the application.
type Config struct {
	ServerAddr       string
	Rooms            []string
	DefaultRoom      string
	AllowedOrigins   []string
	MaxMessageBytes  int64
	MaxFileBytes     int
	AllowedFileTypes []string
	ReactionScope    ReactionScope
	EnvFile          string
	ShutdownTimeout  time.Duration
}

var _ Provider = (*Config)(nil)

// New loads the .env file named by ENV_FILE (default ".env") if present and
// builds the configuration from the environment.
func New() *Config {
	envFile := getenv(os.LookupEnv, "ENV_FILE", DefaultEnvFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("No env file found, relying on environment variables", "file", envFile)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a configuration from lookup, applying defaults and
// dropping invalid values.
func FromLookup(lookup func(string) (string, bool)) *Config {
	cfg := &Config{
		ServerAddr:       getenv(lookup, "SERVER_ADDR", DefaultServerAddr),
		Rooms:            splitList(getenv(lookup, "ROOMS", DefaultRooms)),
		DefaultRoom:      getenv(lookup, "DEFAULT_ROOM", DefaultRoom),
		AllowedOrigins:   splitList(getenv(lookup, "ALLOWED_ORIGINS", "")),
		MaxMessageBytes:  int64(getInt(lookup, "MAX_MESSAGE_BYTES", DefaultMaxMessageBytes)),
		MaxFileBytes:     getInt(lookup, "MAX_FILE_BYTES", DefaultMaxFileBytes),
		AllowedFileTypes: splitList(strings.ToLower(getenv(lookup, "ALLOWED_FILE_TYPES", DefaultAllowedFileTypes))),
		ReactionScope:    ScopeGlobal,
		EnvFile:          getenv(lookup, "ENV_FILE", DefaultEnvFile),
		ShutdownTimeout:  DefaultShutdownTimeout,
	}

	if len(cfg.Rooms) == 0 {
		cfg.Rooms = splitList(DefaultRooms)
	}
	found := false
	for _, r := range cfg.Rooms {
		if r == cfg.DefaultRoom {
			found = true
			break
		}
	}
	if !found {
		slog.Warn("DEFAULT_ROOM is not a configured room, using the first room",
			"default_room", cfg.DefaultRoom, "rooms", cfg.Rooms)
		cfg.DefaultRoom = cfg.Rooms[0]
	}

	if scope := ReactionScope(strings.ToLower(getenv(lookup, "REACTION_SCOPE", ""))); scope == ScopeRoom {
		cfg.ReactionScope = ScopeRoom
	}

	if raw := getenv(lookup, "SHUTDOWN_TIMEOUT", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.ShutdownTimeout = d
		} else {
			slog.Warn("Ignoring invalid SHUTDOWN_TIMEOUT", "value", raw)
		}
	}

	return cfg
}

func (c *Config) GetServerAddr() string { return c.ServerAddr }
func (c *Config) GetRooms() []string { return append([]string(nil), c.Rooms...) }
func (c *Config) GetDefaultRoom() string { return c.DefaultRoom }
func (c *Config) GetAllowedOrigins() []string { return append([]string(nil), c.AllowedOrigins...) }
func (c *Config) GetMaxMessageBytes() int64 { return c.MaxMessageBytes }
func (c *Config) GetMaxFileBytes() int { return c.MaxFileBytes }
func (c *Config) GetAllowedFileTypes() []string { return append([]string(nil), c.AllowedFileTypes...) }
func (c *Config) GetReactionScope() ReactionScope { return c.ReactionScope }
func (c *Config) GetEnvFile() string { return c.EnvFile }
func (c *Config) GetShutdownTimeout() time.Duration { return c.ShutdownTimeout }

func getenv(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(lookup func(string) (string, bool), key string, fallback int) int {
	raw := getenv(lookup, key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", raw)
		return fallback
	}
	return n
}

// splitList splits a comma separated list, trimming and dropping blanks and
// duplicates while keeping order.
func splitList(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
