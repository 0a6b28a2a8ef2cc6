// Package config loads Stellar Rooms settings from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

//go:embed config.example.toml
var exampleConf []byte

// ErrInvalidConfig is returned when a loaded config fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	SocketIO  SocketIOConfig  `toml:"socketio"`
	MPD       MPDConfig       `toml:"mpd"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	MaxConnectionsPerIP    int    `toml:"max_connections_per_ip"`
	ReadTimeoutSeconds     int    `toml:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	StaticDir              string `toml:"static_dir"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig locates persisted room data.
type StorageConfig struct {
	SnapshotDir  string `toml:"snapshot_dir"`
	DatabasePath string `toml:"database_path"`
}

// BroadcastConfig tunes observer delivery.
type BroadcastConfig struct {
	BufferSize  int     `toml:"buffer_size"`
	BacklogSize int     `toml:"backlog_size"`
	ChatRate    float64 `toml:"chat_rate"`
	ChatBurst   int     `toml:"chat_burst"`
}

// SocketIOConfig contains Socket.IO engine settings.
type SocketIOConfig struct {
	PingTimeoutMS  int    `toml:"ping_timeout_ms"`
	PingIntervalMS int    `toml:"ping_interval_ms"`
	CORSOrigin     string `toml:"cors_origin"`
}

// MPDConfig configures the optional MPD playback mirror.
type MPDConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Room     string `toml:"room"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// ZerologLevel parses the configured level, defaulting to info.
func (l LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// DefaultConfig returns the defaults from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads path over the defaults. Keys absent from the file keep
// their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidConfig, undecoded[0])
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Storage.SnapshotDir == "":
		return fmt.Errorf("%w: storage.snapshot_dir is required", ErrInvalidConfig)
	case c.Broadcast.BufferSize < 1:
		return fmt.Errorf("%w: broadcast.buffer_size must be positive", ErrInvalidConfig)
	case c.Broadcast.BacklogSize < 1:
		return fmt.Errorf("%w: broadcast.backlog_size must be positive", ErrInvalidConfig)
	case c.Broadcast.ChatRate <= 0 || c.Broadcast.ChatBurst < 1:
		return fmt.Errorf("%w: broadcast chat limits must be positive", ErrInvalidConfig)
	case c.MPD.Enabled && c.MPD.Room == "":
		return fmt.Errorf("%w: mpd.room is required when mpd is enabled", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile writes the example config to path unless a file exists there.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
