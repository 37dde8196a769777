package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Cache       CacheConfig       `toml:"cache"`
	Auth        AuthConfig        `toml:"auth"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Releases    ReleasesConfig    `toml:"releases"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify   SpotifyConfig   `toml:"spotify"`
	LastFM    LastFMConfig    `toml:"lastfm"`
	Anthropic AnthropicConfig `toml:"anthropic"`
}

// SpotifyConfig contains Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
	APIURL       string `toml:"api_url"`
	Market       string `toml:"market"`
	Country      string `toml:"country"`
}

// LastFMConfig contains Last.fm API settings.
type LastFMConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// AnthropicConfig contains settings for the text-generation API used for chord analysis.
type AnthropicConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// CacheConfig controls the in-memory release cache.
type CacheConfig struct {
	DefaultTTL    time.Duration `toml:"default_ttl"`
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// AuthConfig controls the catalog token lifecycle.
type AuthConfig struct {
	SafetyMargin time.Duration `toml:"safety_margin"`
	RetryDelay   time.Duration `toml:"retry_delay"`
	Timeout      time.Duration `toml:"timeout"`
}

// UpstreamConfig bounds every outbound HTTP call.
type UpstreamConfig struct {
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
}

// ReleasesConfig sizes catalog listing and search requests.
type ReleasesConfig struct {
	Limit             int `toml:"limit"`
	SearchLimit       int `toml:"search_limit"`
	EnrichConcurrency int `toml:"enrich_concurrency"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults; environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv(os.LookupEnv)
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

// ApplyEnv overrides credentials and the listen port from environment variables.
//
// lookup is usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, target *string) {
		if v, ok := lookup(key); ok && v != "" {
			*target = v
		}
	}

	set("SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	set("SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	set("LASTFM_API_KEY", &c.Credentials.LastFM.APIKey)
	set("LASTFM_BASE_URL", &c.Credentials.LastFM.BaseURL)
	set("ANTHROPIC_API_KEY", &c.Credentials.Anthropic.APIKey)

	if v, ok := lookup("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}

// Validate checks that the catalog credentials are present and the numeric settings are usable.
func (c *Config) Validate() error {
	var errs []error

	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache default_ttl must be positive", ErrInvalidConfig))
	}
	if c.Releases.Limit <= 0 || c.Releases.SearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: releases limit and search_limit must be positive", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
