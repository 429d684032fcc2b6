// Package config provides Viper-based configuration loading for the zone
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the socket acceptor settings.
type ServerConfig struct {
	// Host is the bind address for both listeners.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the raw socket listener.
	Port int `mapstructure:"port"`
	// WSPort is the TCP port for the WebSocket listener; 0 disables it.
	WSPort int `mapstructure:"ws_port"`
	// WSPath is the HTTP path the WebSocket upgrade is served on.
	WSPath string `mapstructure:"ws_path"`
	// ReadTimeout is the per-read timeout for client connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// LoginTimeout bounds the handshake plus login exchange; a connection
	// that has not authenticated within it is dropped.
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

// Addr returns the "host:port" listen address for the raw socket listener.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WSAddr returns the "host:port" listen address for the WebSocket listener.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) WSAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.WSPort)
}

// RoomConfig holds the world bootstrap and room occupancy settings.
type RoomConfig struct {
	// Zone is the name of the zone this server hosts.
	Zone string `mapstructure:"zone"`
	// Rooms lists the group-qualified rooms ("group/room") created at
	// startup. Groups are created on first mention, in order.
	Rooms []string `mapstructure:"rooms"`
	// DefaultCapacity is the active-player limit applied to rooms without
	// an override. Spectators are not counted against it.
	DefaultCapacity int `mapstructure:"default_capacity"`
	// CapacityOverrides maps group-qualified room names ("group/room") to
	// per-room active-player limits.
	CapacityOverrides map[string]int `mapstructure:"capacity_overrides"`
	// SelfEcho controls whether room broadcasts are echoed back to the
	// originating player.
	SelfEcho bool `mapstructure:"self_echo"`
}

// IdentityEntry is one static token mapping used by the built-in identity
// provider.
type IdentityEntry struct {
	AccountID   string `mapstructure:"account_id"`
	SaveID      string `mapstructure:"save_id"`
	DisplayName string `mapstructure:"display_name"`
}

// IdentityConfig selects and parameterizes the identity provider. Only the
// static in-memory provider is built in; an empty token table means no
// login can succeed.
type IdentityConfig struct {
	Tokens map[string]IdentityEntry `mapstructure:"tokens"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Room     RoomConfig     `mapstructure:"room"`
	Identity IdentityConfig `mapstructure:"identity"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRoom(c.Room); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateIdentity(c.Identity); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.WSPort < 0 || s.WSPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.ws_port must be 0-65535, got %d", s.WSPort))
	}
	if s.WSPort != 0 {
		if s.WSPath == "" || !strings.HasPrefix(s.WSPath, "/") {
			errs = append(errs, fmt.Sprintf("server.ws_path must start with '/', got %q", s.WSPath))
		}
		if s.WSPort == s.Port {
			errs = append(errs, "server.ws_port must differ from server.port")
		}
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.LoginTimeout <= 0 {
		errs = append(errs, "server.login_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	var errs []string
	if r.Zone == "" {
		errs = append(errs, "room.zone must not be empty")
	}
	if r.DefaultCapacity < 1 {
		errs = append(errs, fmt.Sprintf("room.default_capacity must be >= 1, got %d", r.DefaultCapacity))
	}
	if len(r.Rooms) == 0 {
		errs = append(errs, "room.rooms must list at least one room")
	}
	for _, name := range r.Rooms {
		if !strings.Contains(name, "/") {
			errs = append(errs, fmt.Sprintf("room.rooms entry %q must be group-qualified (group/room)", name))
		}
	}
	for name, limit := range r.CapacityOverrides {
		if !strings.Contains(name, "/") {
			errs = append(errs, fmt.Sprintf("room.capacity_overrides key %q must be group-qualified (group/room)", name))
		}
		if limit < 1 {
			errs = append(errs, fmt.Sprintf("room.capacity_overrides[%q] must be >= 1, got %d", name, limit))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateIdentity(i IdentityConfig) error {
	var errs []string
	for token, entry := range i.Tokens {
		if entry.SaveID == "" {
			errs = append(errs, fmt.Sprintf("identity.tokens[%q].save_id must not be empty", token))
		}
		if entry.DisplayName == "" {
			errs = append(errs, fmt.Sprintf("identity.tokens[%q].display_name must not be empty", token))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ZONESERVER_ prefix
	v.SetEnvPrefix("ZONESERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9339)
	v.SetDefault("server.ws_port", 8888)
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.read_timeout", "5m")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.login_timeout", "10s")

	v.SetDefault("room.zone", "default")
	v.SetDefault("room.rooms", []string{"default/lobby"})
	v.SetDefault("room.default_capacity", 40)
	v.SetDefault("room.self_echo", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
