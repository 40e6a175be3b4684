// Package config loads the cache server configuration from the environment.
// An optional .env file in the working directory is read first; variables
// already present in the environment take precedence over it.
//
// Environment Variables:
//
// Primary Store:
//   - REDIS_URL: redis:// URL or bare host:port (default: redis://localhost:6379)
//   - REDIS_POOL_SIZE: connection pool size, 0 for the client default (default: 0)
//   - REDIS_MAX_RETRIES: reconnect attempts before giving up (default: 10)
//   - REDIS_RETRY_DELAY_MS: reconnect base delay, multiplied by the attempt (default: 1000)
//   - REDIS_RETRY_DELAY_CAP_MS: reconnect delay cap (default: 30000)
//   - REDIS_CONNECT_TIMEOUT_MS: dial and readiness ping timeout (default: 5000)
//   - REDIS_COMMAND_TIMEOUT_MS: per-command read/write timeout (default: 3000)
//
// Cache:
//   - CACHE_KEY_PREFIX: prefix of every key (default: ais)
//   - CACHE_FALLBACK_MAX_SIZE: in-memory tier capacity (default: 10000)
//   - CACHE_SWEEP_INTERVAL_SECONDS: in-memory expiry sweep period (default: 60)
//
// Server:
//   - PORT: HTTP port of the cache server (default: 8080)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_PRETTY: human-readable console logs (default: false)
//
// Invalid values never stop the process: the default is kept and the problem
// is reported in the error returned by Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/Sternrassler/ais-cache/pkg/logging"
	"github.com/Sternrassler/ais-cache/pkg/primary"
	"github.com/joho/godotenv"
)

// DefaultPort is the HTTP port used when PORT is unset.
const DefaultPort = "8080"

// Config holds all settings of the cache server.
type Config struct {
	// Primary store
	RedisURL          string
	RedisPoolSize     int
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayCap time.Duration
	ConnectTimeout    time.Duration
	CommandTimeout    time.Duration

	// Cache
	KeyPrefix       string
	FallbackMaxSize int
	SweepInterval   time.Duration

	// Server
	Port      string
	LogLevel  logging.LogLevel
	LogPretty bool
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	c := cache.DefaultConfig()
	return Config{
		RedisURL:          c.Primary.URL,
		RedisPoolSize:     c.Primary.PoolSize,
		ReconnectAttempts: c.Primary.Reconnect.MaxAttempts,
		ReconnectDelay:    c.Primary.Reconnect.BaseDelay,
		ReconnectDelayCap: c.Primary.Reconnect.MaxDelay,
		ConnectTimeout:    c.Primary.ConnectTimeout,
		CommandTimeout:    c.Primary.CommandTimeout,
		KeyPrefix:         c.KeyPrefix,
		FallbackMaxSize:   c.FallbackCapacity,
		SweepInterval:     c.SweepInterval,
		Port:              DefaultPort,
		LogLevel:          logging.LevelInfo,
	}
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	return LoadFile()
}

// LoadFile reads the given env files (".env" when none is given), skipping
// missing ones, and then the environment.
func LoadFile(filenames ...string) (Config, error) {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	var errs []error
	for _, name := range filenames {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", name, err))
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()
	p := parser{}

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPoolSize = p.intVar("REDIS_POOL_SIZE", cfg.RedisPoolSize, 0)
	cfg.ReconnectAttempts = p.intVar("REDIS_MAX_RETRIES", cfg.ReconnectAttempts, 1)
	cfg.ReconnectDelay = p.millisVar("REDIS_RETRY_DELAY_MS", cfg.ReconnectDelay)
	cfg.ReconnectDelayCap = p.millisVar("REDIS_RETRY_DELAY_CAP_MS", cfg.ReconnectDelayCap)
	cfg.ConnectTimeout = p.millisVar("REDIS_CONNECT_TIMEOUT_MS", cfg.ConnectTimeout)
	cfg.CommandTimeout = p.millisVar("REDIS_COMMAND_TIMEOUT_MS", cfg.CommandTimeout)

	cfg.KeyPrefix = getEnv("CACHE_KEY_PREFIX", cfg.KeyPrefix)
	cfg.FallbackMaxSize = p.intVar("CACHE_FALLBACK_MAX_SIZE", cfg.FallbackMaxSize, 1)
	cfg.SweepInterval = time.Duration(p.intVar("CACHE_SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval/time.Second), 1)) * time.Second

	cfg.Port = p.portVar("PORT", cfg.Port)
	cfg.LogPretty = p.boolVar("LOG_PRETTY", cfg.LogPretty)
	if raw, ok := lookup("LOG_LEVEL"); ok {
		level, err := logging.ParseLevel(raw)
		if err != nil {
			p.fail("LOG_LEVEL", err)
		} else {
			cfg.LogLevel = level
		}
	}

	return cfg, p.err()
}

// Cache converts the configuration for cache.NewManager.
func (c Config) Cache() cache.Config {
	return cache.Config{
		KeyPrefix: c.KeyPrefix,
		Primary: primary.Config{
			URL:            c.RedisURL,
			ConnectTimeout: c.ConnectTimeout,
			CommandTimeout: c.CommandTimeout,
			PoolSize:       c.RedisPoolSize,
			Reconnect: primary.ReconnectConfig{
				MaxAttempts: c.ReconnectAttempts,
				BaseDelay:   c.ReconnectDelay,
				MaxDelay:    c.ReconnectDelayCap,
			},
		},
		FallbackCapacity: c.FallbackMaxSize,
		SweepInterval:    c.SweepInterval,
	}
}

// Logging converts the configuration for logging.Setup.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// Addr returns the listen address of the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return defaultValue
}

// lookup returns the trimmed value of key, treating empty values as unset.
func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// parser collects invalid variables while keeping their defaults.
type parser struct {
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) intVar(key string, defaultValue, minimum int) int {
	raw, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, fmt.Errorf("not an integer: %q", raw))
		return defaultValue
	}
	if n < minimum {
		p.fail(key, fmt.Errorf("must be at least %d, got %d", minimum, n))
		return defaultValue
	}
	return n
}

func (p *parser) millisVar(key string, defaultValue time.Duration) time.Duration {
	ms := p.intVar(key, int(defaultValue/time.Millisecond), 1)
	return time.Duration(ms) * time.Millisecond
}

func (p *parser) boolVar(key string, defaultValue bool) bool {
	raw, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, fmt.Errorf("not a boolean: %q", raw))
		return defaultValue
	}
	return b
}

func (p *parser) portVar(key, defaultValue string) string {
	raw, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 65535 {
		p.fail(key, fmt.Errorf("invalid port %q", raw))
		return defaultValue
	}
	return raw
}
