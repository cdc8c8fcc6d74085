package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override, e.g. DAILYSHUFFLE_SERVER_PORT.
const EnvPrefix = "DAILYSHUFFLE_"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Spotify   SpotifyConfig   `toml:"spotify" envPrefix:"SPOTIFY_"`
	Database  DatabaseConfig  `toml:"database" envPrefix:"DB_"`
	Server    ServerConfig    `toml:"server" envPrefix:"SERVER_"`
	Session   SessionConfig   `toml:"session" envPrefix:"SESSION_"`
	Scheduler SchedulerConfig `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
}

// SpotifyConfig contains Spotify OAuth client credentials and Web API settings.
type SpotifyConfig struct {
	ClientID          string        `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret      string        `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI       string        `toml:"redirect_uri" env:"REDIRECT_URI"`
	AuthURL           string        `toml:"auth_url" env:"AUTH_URL"`
	TokenURL          string        `toml:"token_url" env:"TOKEN_URL"`
	APIBaseURL        string        `toml:"api_base_url" env:"API_BASE_URL"`
	RequestsPerSecond float64       `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	HTTPTimeout       time.Duration `toml:"http_timeout" env:"HTTP_TIMEOUT"`
	MaxRetries        int           `toml:"max_retries" env:"MAX_RETRIES"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host" env:"HOST"`
	Port          int    `toml:"port" env:"PORT"`
	SecureCookies bool   `toml:"secure_cookies" env:"SECURE_COOKIES"`
}

// SessionConfig controls browser session tokens and PKCE verifier lifetimes.
type SessionConfig struct {
	Lifetime    time.Duration `toml:"lifetime" env:"LIFETIME"`
	Grace       time.Duration `toml:"grace" env:"GRACE"`
	RotateAfter time.Duration `toml:"rotate_after" env:"ROTATE_AFTER"`
	VerifierTTL time.Duration `toml:"verifier_ttl" env:"VERIFIER_TTL"`
}

// SchedulerConfig controls the periodic shuffle pass.
type SchedulerConfig struct {
	Interval      time.Duration `toml:"interval" env:"INTERVAL"`
	SweepInterval time.Duration `toml:"sweep_interval" env:"SWEEP_INTERVAL"`
	Budget        time.Duration `toml:"budget" env:"BUDGET"`
	Workers       int           `toml:"workers" env:"WORKERS"`
	ExpiryWindow  time.Duration `toml:"expiry_window" env:"EXPIRY_WINDOW"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads a TOML configuration file on top of the embedded defaults.
//
// Keys absent from the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(config); err != nil {
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

// Load builds the process configuration.
//
// A .env file in the working directory is loaded into the environment when present,
// the TOML file at path is read when it exists (defaults otherwise), and DAILYSHUFFLE_*
// environment variables are applied last.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields with any DAILYSHUFFLE_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Spotify.ClientID == "" {
		errs = append(errs, fmt.Errorf("spotify.client_id is required"))
	}
	if c.Spotify.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("spotify.client_secret is required"))
	}
	if c.Spotify.RedirectURI == "" {
		errs = append(errs, fmt.Errorf("spotify.redirect_uri is required"))
	}
	if c.Spotify.AuthURL == "" || c.Spotify.TokenURL == "" || c.Spotify.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("spotify endpoints must not be empty"))
	}
	if c.Spotify.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("spotify.requests_per_second must be positive"))
	}
	if c.Spotify.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("spotify.http_timeout must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Session.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("session.lifetime must be positive"))
	}
	if c.Session.Grace < 0 || c.Session.Grace >= c.Session.Lifetime {
		errs = append(errs, fmt.Errorf("session.grace must be within [0, lifetime)"))
	}
	if c.Session.VerifierTTL <= 0 {
		errs = append(errs, fmt.Errorf("session.verifier_ttl must be positive"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive"))
	}
	if c.Scheduler.Workers < 1 {
		errs = append(errs, fmt.Errorf("scheduler.workers must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
