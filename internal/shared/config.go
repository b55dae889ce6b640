package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and overridden by the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Worker      WorkerConfig      `toml:"worker"`
	Matching    MatchingConfig    `toml:"matching"`
	Downloads   DownloadsConfig   `toml:"downloads"`
	HTTP        HTTPConfig        `toml:"http"`
	LogLevel    string            `toml:"log_level" env:"LOG_LEVEL"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	TokenURL     string `toml:"token_url" env:"SPOTIFY_TOKEN_URL"`
	APIBase      string `toml:"api_base" env:"SPOTIFY_API_BASE"`
}

// TidalConfig contains TIDAL API client credentials and endpoints.
type TidalConfig struct {
	ClientID     string `toml:"client_id" env:"TIDAL_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"TIDAL_CLIENT_SECRET"`
	AuthURL      string `toml:"auth_url" env:"TIDAL_AUTH_URL"`
	APIBase      string `toml:"api_base" env:"TIDAL_API_BASE"`
	CountryCode  string `toml:"country_code" env:"TIDAL_COUNTRY_CODE"`
}

// DatabaseConfig contains settings for the candidate cache database.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled" env:"DATABASE_ENABLED"`
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// URL is the externally reachable base the worker uses to call back into the server.
type ServerConfig struct {
	Host            string        `toml:"host" env:"SERVER_HOST"`
	Port            int           `toml:"port" env:"SERVER_PORT"`
	URL             string        `toml:"url" env:"SERVER_URL"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// WorkerConfig contains archive worker settings.
type WorkerConfig struct {
	URL          string        `toml:"url" env:"WORKER_URL"`
	Host         string        `toml:"host" env:"WORKER_HOST"`
	Port         int           `toml:"port" env:"WORKER_PORT"`
	FetchCommand []string      `toml:"fetch_command" env:"WORKER_FETCH_COMMAND" env-separator:" "`
	TrackTimeout time.Duration `toml:"track_timeout"`
	RateLimit    float64       `toml:"rate_limit"`
}

// MatchingConfig contains catalog matching policy.
type MatchingConfig struct {
	BatchSize       int           `toml:"batch_size" env:"MATCH_BATCH_SIZE"`
	InterChunkDelay time.Duration `toml:"inter_chunk_delay"`
}

// DownloadsConfig contains archive staging and job retention settings.
type DownloadsConfig struct {
	StagingDir      string        `toml:"staging_dir" env:"STAGING_DIR"`
	Retention       time.Duration `toml:"retention"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
}

// HTTPConfig contains the timeout and retry policy for outbound calls.
type HTTPConfig struct {
	Timeout     time.Duration `toml:"timeout"`
	MaxAttempts int           `toml:"max_attempts"`
}

// Addr returns the host:port the API server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Addr returns the host:port the worker listens on.
func (w WorkerConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

// LoadConfig reads and parses a TOML configuration file from the specified path on top of [DefaultConfig].
//
// Environment overrides are not applied; see [ApplyEnv].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// ApplyEnv overrides config values with any environment variables named in the struct tags.
func ApplyEnv(config *Config) error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveConfig loads path when it exists (defaults otherwise) and applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
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

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	if config.Downloads.StagingDir == "" {
		config.Downloads.StagingDir = os.TempDir()
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
