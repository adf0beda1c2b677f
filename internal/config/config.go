// Package config loads quarry settings from defaults, an optional config
// file, a .env file and QUARRY_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FranksOps/quarry/internal/fingerprint"
	"github.com/FranksOps/quarry/internal/source"
)

// EnvPrefix namespaces environment overrides, e.g. QUARRY_KEYS_PIXABAY.
const EnvPrefix = "QUARRY"

// Backend kinds for the cache and the library.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSON     = "json"
)

// Keys are provider API credentials.
type Keys struct {
	Unsplash string `mapstructure:"unsplash"`
	Pixabay  string `mapstructure:"pixabay"`
	Pexels   string `mapstructure:"pexels"`
	Flickr   string `mapstructure:"flickr"`
}

// HTTP configures the outbound client shared by the adapters.
type HTTP struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Fingerprint string        `mapstructure:"fingerprint"`
	UserAgent   string        `mapstructure:"user_agent"`
	Proxies     []string      `mapstructure:"proxies"`
	ProxyFile   string        `mapstructure:"proxy_file"`
	RPS         float64       `mapstructure:"rps"`
	Jitter      float64       `mapstructure:"jitter"`
}

// Store selects a storage backend and its DSN (a file path for sqlite and
// json, a connection string for postgres).
type Store struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// Cache configures the adapter response cache.
type Cache struct {
	TTL   time.Duration `mapstructure:"ttl"`
	Store `mapstructure:",squash"`
}

// Results configures request sizes.
type Results struct {
	PageSize int `mapstructure:"page_size"`
	Limit    int `mapstructure:"limit"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full quarry configuration.
type Config struct {
	Keys    Keys    `mapstructure:"keys"`
	HTTP    HTTP    `mapstructure:"http"`
	Cache   Cache   `mapstructure:"cache"`
	Library Store   `mapstructure:"library"`
	Results Results `mapstructure:"results"`
	Enrich  struct {
		Concurrency int `mapstructure:"concurrency"`
	} `mapstructure:"enrich"`
	Metrics struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Sources []string `mapstructure:"sources"`
	Log     Log      `mapstructure:"log"`
}

// DefaultLibraryPath is where the json library lives when no DSN is set.
func DefaultLibraryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "quarry", "library.ndjson")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("http.user_agent", source.DefaultUserAgent)
	v.SetDefault("http.proxies", []string{})
	v.SetDefault("http.proxy_file", "")
	v.SetDefault("http.rps", 0.0)
	v.SetDefault("http.jitter", 0.0)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.dsn", "")
	v.SetDefault("library.backend", BackendJSON)
	v.SetDefault("library.dsn", "")
	v.SetDefault("results.page_size", source.DefaultPageSize)
	v.SetDefault("results.limit", source.DefaultLimit)
	v.SetDefault("enrich.concurrency", source.DefaultEnrichConcurrency)
	v.SetDefault("metrics.port", 0)
	v.SetDefault("sources", []string{})
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	for _, k := range []string{"unsplash", "pixabay", "pexels", "flickr"} {
		v.SetDefault("keys."+k, "")
	}
}

// Load reads configuration. path may name a yaml, json or toml file; when
// empty, quarry.{yaml,json,toml} is looked up in the working directory and
// the user config dir, and a missing file is not an error. envFile names a
// dotenv file loaded into the process environment first ("" means ".env",
// missing is not an error). Variables already set in the environment win.
func Load(path, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quarry")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "quarry"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Sources = splitList(cfg.Sources)
	cfg.HTTP.Proxies = splitList(cfg.HTTP.Proxies)
	if cfg.Library.Backend == BackendJSON && cfg.Library.DSN == "" {
		cfg.Library.DSN = DefaultLibraryPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

// splitList accepts both list values and a single comma separated string,
// which is what environment variables provide.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if _, err := fingerprint.ParseProfile(c.HTTP.Fingerprint); err != nil {
		return fmt.Errorf("http.fingerprint: %w", err)
	}
	if c.HTTP.RPS < 0 {
		return fmt.Errorf("http.rps must not be negative")
	}
	if c.HTTP.Jitter < 0 || c.HTTP.Jitter > 1 {
		return fmt.Errorf("http.jitter must be between 0 and 1, got %v", c.HTTP.Jitter)
	}
	if err := checkBackend("cache", c.Cache.Store, true); err != nil {
		return err
	}
	if err := checkBackend("library", c.Library, false); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func checkBackend(name string, s Store, allowNone bool) error {
	switch strings.ToLower(s.Backend) {
	case BackendNone:
		if !allowNone {
			return fmt.Errorf("%s.backend: %q is not supported", name, s.Backend)
		}
	case BackendMemory:
	case BackendSQLite, BackendPostgres, BackendJSON:
		if s.DSN == "" {
			return fmt.Errorf("%s.dsn is required for backend %q", name, s.Backend)
		}
	default:
		return fmt.Errorf("%s.backend: unknown backend %q", name, s.Backend)
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level: unknown level %q", s)
}

// SourceKeys converts the configured credentials for the adapters.
func (c *Config) SourceKeys() source.Keys {
	return source.Keys{
		Unsplash: c.Keys.Unsplash,
		Pixabay:  c.Keys.Pixabay,
		Pexels:   c.Keys.Pexels,
		Flickr:   c.Keys.Flickr,
	}
}
