package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Playback    PlaybackConfig    `toml:"playback"`
	Provider    ProviderConfig    `toml:"provider"`
	Scoring     ScoringConfig     `toml:"scoring"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Configured reports whether both halves of the client credentials are present.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig controls the token lifecycle.
type AuthConfig struct {
	ExpirySkew         Duration `toml:"expiry_skew"`
	RequestTimeout     Duration `toml:"request_timeout"`
	MaxRefreshFailures int      `toml:"max_refresh_failures"`
	LinkStateTTL       Duration `toml:"link_state_ttl"`
}

// MaintenanceConfig controls the background credential sweep.
type MaintenanceConfig struct {
	Interval  Duration `toml:"interval"`
	Horizon   Duration `toml:"horizon"`
	Workers   int      `toml:"workers"`
	RateLimit float64  `toml:"rate_limit"`
}

// PlaybackConfig controls the orchestrator.
type PlaybackConfig struct {
	SearchLimit     int      `toml:"search_limit"`
	SkipSettleDelay Duration `toml:"skip_settle_delay"`
}

// ProviderConfig holds provider endpoints. Tests point these at local servers.
type ProviderConfig struct {
	AuthURL        string   `toml:"auth_url"`
	TokenURL       string   `toml:"token_url"`
	APIURL         string   `toml:"api_url"`
	RequestTimeout Duration `toml:"request_timeout"`
	RateLimit      float64  `toml:"rate_limit"`
}

// ScoringConfig holds the vocabulary tables used to rank search results.
type ScoringConfig struct {
	LowConfidence int      `toml:"low_confidence"`
	FormTerms     []string `toml:"form_terms"`
	Performers    []string `toml:"performers"`
	Instructional []string `toml:"instructional"`
}

// Duration is a [time.Duration] that decodes from strings like "5m" or "300ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
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

// LoadEnv reads the given dotenv files (".env" when none are given) into the process environment.
//
// Missing files are not an error; variables already set are left alone.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overlays credentials and the database path from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := getenv("MAESTRO_DB_PATH"); v != "" {
		c.Database.Path = v
	}
}
