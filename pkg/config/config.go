// Package config loads aurgrab's TOML configuration file.
//
// The file lives at $XDG_CONFIG_HOME/aurgrab/config.toml (falling back to
// ~/.config/aurgrab/config.toml). A missing file is not an error: every key
// has a default, and command-line flags override whatever the file sets.
//
//	aur_url     = "https://aur.archlinux.org"
//	target_dir  = "~/builds"
//	max_threads = 10
//	timeout     = "10s"
//	ignore_pkgs = ["linux-git"]
//	ignore_repos = ["testing"]
//	color       = "auto"
//
//	[cache]
//	backend = "file"   # file, memory, redis or none
//	ttl     = "1h"
//
//	[pacman]
//	db_path = "/var/lib/pacman"
//	repos   = ["core", "extra", "multilib"]
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/aurgrab/pkg/errors"
)

const appName = "aurgrab"

// Defaults.
const (
	DefaultAURURL     = "https://aur.archlinux.org"
	DefaultMaxThreads = 10
	DefaultTimeout    = 10 * time.Second
	DefaultCacheTTL   = time.Hour
	DefaultMemorySize = 1024
	DefaultDBPath     = "/var/lib/pacman"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Duration is a time.Duration written as a string ("10s", "1h30m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full configuration.
type Config struct {
	AURURL      string   `toml:"aur_url"`
	TargetDir   string   `toml:"target_dir"`
	MaxThreads  int      `toml:"max_threads"`
	Timeout     Duration `toml:"timeout"`
	IgnorePkgs  []string `toml:"ignore_pkgs"`
	IgnoreRepos []string `toml:"ignore_repos"`
	Color       string   `toml:"color"`

	Cache  CacheConfig  `toml:"cache"`
	Pacman PacmanConfig `toml:"pacman"`
}

// CacheConfig selects and tunes the response cache.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	TTL           Duration `toml:"ttl"`
	Dir           string   `toml:"dir"`
	MemorySize    int      `toml:"memory_size"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisDB       int      `toml:"redis_db"`
	RedisPassword string   `toml:"redis_password"`
}

// PacmanConfig locates the local package database.
type PacmanConfig struct {
	DBPath string   `toml:"db_path"`
	Repos  []string `toml:"repos"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		AURURL:     DefaultAURURL,
		TargetDir:  ".",
		MaxThreads: DefaultMaxThreads,
		Timeout:    Duration{DefaultTimeout},
		Color:      ColorAuto,
		Cache: CacheConfig{
			Backend:    BackendFile,
			TTL:        Duration{DefaultCacheTTL},
			MemorySize: DefaultMemorySize,
		},
		Pacman: PacmanConfig{
			DBPath: DefaultDBPath,
		},
	}
}

// Load reads the file at path on top of the defaults. An empty path means
// [DefaultPath]. A missing file yields the defaults; unknown keys are an
// error so that typos do not pass silently.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.TargetDir = expandHome(cfg.TargetDir)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := errors.ValidateURL(c.AURURL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "aur_url")
	}
	if c.MaxThreads < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_threads must be at least 1, got %d", c.MaxThreads)
	}
	if c.Timeout.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeout must be positive")
	}
	if !slices.Contains([]string{ColorAuto, ColorAlways, ColorNever}, c.Color) {
		return errors.New(errors.ErrCodeInvalidConfig, "color must be auto, always or never, got %q", c.Color)
	}
	if c.TargetDir == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "target_dir cannot be empty")
	}

	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendMemory:
		if c.Cache.MemorySize < 1 {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.memory_size must be at least 1")
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.ttl cannot be negative")
	}
	return nil
}

// DefaultPath returns the XDG location of the configuration file.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// CacheDir returns the cache directory using XDG standard (~/.cache/aurgrab/).
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
