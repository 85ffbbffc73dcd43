package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvSpotifyRedirectURI  = "SPOTIFY_REDIRECT_URI"
	EnvSessionSecret       = "SESSION_SECRET"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Auth        AuthConfig        `toml:"auth"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
	RedirectURI  string `toml:"redirect_uri" validate:"required,url"`
	APIBaseURL   string `toml:"api_base_url" validate:"omitempty,url"`
}

// Map returns the credentials in the form accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"api_base_url":  s.APIBaseURL,
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port" validate:"gte=1,lte=65535"`
	StaticDir      string   `toml:"static_dir"`
	ReadTimeout    string   `toml:"read_timeout"`
	WriteTimeout   string   `toml:"write_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
	TrustProxy     bool     `toml:"trust_proxy"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig contains cookie session settings.
type SessionConfig struct {
	Secret     string `toml:"secret" validate:"required,min=32"`
	CookieName string `toml:"cookie_name" validate:"required"`
	Secure     bool   `toml:"secure"`
	Lifetime   string `toml:"lifetime"`
}

// AuthConfig contains authorization flow settings.
type AuthConfig struct {
	StateTTL       string  `toml:"state_ttl"`
	RateLimitRPS   float64 `toml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `toml:"rate_limit_burst" validate:"gte=0"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads the config at path when it exists and falls back to defaults otherwise.
// Values from a .env file and the process environment are applied on top.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// ApplyEnv overrides credentials and secrets with any non-empty values returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvSpotifyClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := getenv(EnvSpotifyClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := getenv(EnvSpotifyRedirectURI); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := getenv(EnvSessionSecret); v != "" {
		c.Session.Secret = v
	}
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SessionLifetime returns the parsed session lifetime, defaulting to 24h.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.Session.Lifetime, 24*time.Hour)
}

// StateTTL returns how long an issued authorization state stays valid, defaulting to 10m.
func (c *Config) StateTTL() time.Duration {
	return parseDuration(c.Auth.StateTTL, 10*time.Minute)
}

// ReadTimeout returns the server read timeout, defaulting to 15s.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// WriteTimeout returns the server write timeout, defaulting to 30s.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
