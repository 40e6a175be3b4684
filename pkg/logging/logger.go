// Package logging configures zerolog for the cache and fixes the field names
// its components log with.
//
// Levels: Debug for per-key cache traffic and reconnect scheduling, Info for
// lifecycle events and invalidations, Warn for swallowed primary store errors
// and fail-open decisions, Error when the primary store is given up.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as accepted in LOG_LEVEL.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Values of the component field.
const (
	ComponentCache     = "cache"
	ComponentServer    = "cache-server"
	ComponentWarmup    = "warmup"
	ComponentRateLimit = "ratelimit"
)

// Values of the tier and feature fields set on the sub-loggers the cache
// manager hands to its primary store and rate limiter.
const (
	TierPrimary      = "primary"
	FeatureRateLimit = "ratelimit"
)

// Field names shared by the cache packages.
const (
	FieldComponent  = "component"
	FieldTier       = "tier"
	FieldFeature    = "feature"
	FieldKey        = "key"
	FieldNamespace  = "namespace"
	FieldVersion    = "version"
	FieldErrorClass = "error_class"
	FieldAttempt    = "attempt"
)

// Config selects level and output format.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs the process-wide logger described by cfg and returns it.
// The level is applied globally, so it also bounds loggers derived earlier.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel validates a level name as found in LOG_LEVEL. An empty name is
// info; an unknown one is info plus an error.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	parsed, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(string(parsed))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// WithTier tags logger with the cache tier it reports on.
func WithTier(logger zerolog.Logger, tier string) zerolog.Logger {
	return logger.With().Str(FieldTier, tier).Logger()
}

// WithFeature tags logger with the cache feature it reports on.
func WithFeature(logger zerolog.Logger, feature string) zerolog.Logger {
	return logger.With().Str(FieldFeature, feature).Logger()
}
