// Package config reads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultStorefront           = "us"
	DefaultCacheBackend         = "memory"
	DefaultSQLitePath           = "./data/cache.db"
	DefaultPort                 = "8080"
	DefaultSpotifyRateLimit     = 120
	DefaultAppleRateLimit       = 300
	DefaultMusicBrainzRateLimit = 50
	DefaultMusicBrainzUserAgent = "crosslink/1.0 (https://github.com/crosslink/crosslink)"
)

var (
	ErrMissingSpotify = errors.New("config: SPOTIFY_ID and SPOTIFY_SECRET must be set")
	ErrPartialApple   = errors.New("config: APPLE_MUSIC_KEY_ID, APPLE_MUSIC_TEAM_ID and APPLE_MUSIC_PRIVATE_KEY must be set together")
)

type Config struct {
	SpotifyID     string
	SpotifySecret string

	AppleKeyID      string
	AppleTeamID     string
	ApplePrivateKey string // PEM contents or a path to the .p8 file
	AppleStorefront string

	YouTubeAPIKey string

	CacheBackend    string
	CacheSQLitePath string
	RedisURL        string

	// Requests per minute, shared by every instance.
	SpotifyRateLimit     int
	AppleRateLimit       int
	MusicBrainzRateLimit int

	MusicBrainzUserAgent string

	LogLevel  string
	LogFormat string
	Port      string
}

// Load reads the given .env files (".env" when none are named) if they
// exist, then the environment. Variables already set are not overridden.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return def
	}

	cfg := &Config{
		SpotifyID:            get("SPOTIFY_ID", ""),
		SpotifySecret:        get("SPOTIFY_SECRET", ""),
		AppleKeyID:           get("APPLE_MUSIC_KEY_ID", ""),
		AppleTeamID:          get("APPLE_MUSIC_TEAM_ID", ""),
		ApplePrivateKey:      get("APPLE_MUSIC_PRIVATE_KEY", ""),
		AppleStorefront:      strings.ToLower(get("APPLE_MUSIC_STOREFRONT", DefaultStorefront)),
		YouTubeAPIKey:        get("YOUTUBE_API_KEY", ""),
		CacheBackend:         strings.ToLower(get("CACHE_BACKEND", DefaultCacheBackend)),
		CacheSQLitePath:      get("CACHE_SQLITE_PATH", DefaultSQLitePath),
		RedisURL:             get("REDIS_URL", ""),
		MusicBrainzUserAgent: get("MUSICBRAINZ_USER_AGENT", DefaultMusicBrainzUserAgent),
		LogLevel:             get("LOG_LEVEL", "info"),
		LogFormat:            get("LOG_FORMAT", "text"),
		Port:                 get("PORT", DefaultPort),
	}

	limits := []struct {
		key string
		def int
		dst *int
	}{
		{"SPOTIFY_RATE_LIMIT", DefaultSpotifyRateLimit, &cfg.SpotifyRateLimit},
		{"APPLE_RATE_LIMIT", DefaultAppleRateLimit, &cfg.AppleRateLimit},
		{"MUSICBRAINZ_RATE_LIMIT", DefaultMusicBrainzRateLimit, &cfg.MusicBrainzRateLimit},
	}
	for _, l := range limits {
		raw := get(l.key, "")
		if raw == "" {
			*l.dst = l.def
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: %s must be a positive integer, got %q", l.key, raw)
		}
		*l.dst = n
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot: required credentials and
// backends that need a DSN.
func (c *Config) Validate() error {
	if c.SpotifyID == "" || c.SpotifySecret == "" {
		return ErrMissingSpotify
	}
	set := 0
	for _, v := range []string{c.AppleKeyID, c.AppleTeamID, c.ApplePrivateKey} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return ErrPartialApple
	}
	switch c.CacheBackend {
	case "memory", "sqlite":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	return nil
}

// AppleCatalogEnabled reports whether developer-token credentials are set.
func (c *Config) AppleCatalogEnabled() bool {
	return c.AppleKeyID != "" && c.AppleTeamID != "" && c.ApplePrivateKey != ""
}

// CacheDSN is the connection string for the configured cache backend.
func (c *Config) CacheDSN() string {
	switch c.CacheBackend {
	case "sqlite":
		return c.CacheSQLitePath
	case "redis":
		return c.RedisURL
	}
	return ""
}
