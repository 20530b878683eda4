package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the Spotify credentials in the config file.
const (
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvSpotifyRedirectURI  = "SPOTIFY_REDIRECT_URI"
)

// Download policies for the fallback downloader.
const (
	PolicyOnMiss = "on_miss" // download only when no catalog match is found
	PolicyAlways = "always"  // also archive matched tracks locally
	PolicyNever  = "never"   // never invoke the downloader
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Download    DownloadConfig    `toml:"download"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last issued token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
}

// Map returns the client credentials in the form expected by the services constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored token, or nil when no token has been saved yet.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Update stores token in the config. A token without a refresh token keeps the previous one.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: token has no access token", ErrInvalidCredentials)
	}

	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	return nil
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MatcherConfig controls fuzzy matching strictness and search breadth.
type MatcherConfig struct {
	Threshold   float64 `toml:"threshold"`
	SearchLimit int     `toml:"search_limit"`
}

// DownloadConfig controls the fallback downloader.
type DownloadConfig struct {
	Policy       string `toml:"policy"`
	Directory    string `toml:"directory"`
	AudioFormat  string `toml:"audio_format"`
	SearchPrefix string `toml:"search_prefix"`
}

// CatalogConfig contains Spotify Web API client settings.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	FollowChunkSize   int     `toml:"follow_chunk_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Validate checks values that the pipeline relies on.
func (c *Config) Validate() error {
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("%w: matcher.threshold must be within [0,1], got %v", ErrInvalidConfig, c.Matcher.Threshold)
	}
	if c.Matcher.SearchLimit < 1 || c.Matcher.SearchLimit > 50 {
		return fmt.Errorf("%w: matcher.search_limit must be within [1,50], got %d", ErrInvalidConfig, c.Matcher.SearchLimit)
	}
	switch c.Download.Policy {
	case PolicyOnMiss, PolicyAlways, PolicyNever:
	default:
		return fmt.Errorf("%w: unknown download.policy %q", ErrInvalidConfig, c.Download.Policy)
	}
	if c.Catalog.FollowChunkSize < 1 || c.Catalog.FollowChunkSize > 50 {
		return fmt.Errorf("%w: catalog.follow_chunk_size must be within [1,50], got %d", ErrInvalidConfig, c.Catalog.FollowChunkSize)
	}
	return nil
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

// SaveConfig encodes config as TOML and writes it to path with owner-only permissions,
// since it may contain tokens.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and overlays
// the SPOTIFY_* variables onto the config.
func ApplyEnv(config *Config, files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	if v := os.Getenv(EnvSpotifyClientID); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvSpotifyClientSecret); v != "" {
		config.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvSpotifyRedirectURI); v != "" {
		config.Credentials.Spotify.RedirectURI = v
	}
}
