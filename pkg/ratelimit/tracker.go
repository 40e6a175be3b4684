package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/logging"
	"github.com/Sternrassler/ais-cache/pkg/primary"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit decisions.
var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ais_ratelimit_decisions_total",
		Help: "Total rate limit decisions by result (allowed, rejected, fail_open)",
	}, []string{"result"})

	ttlRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ais_ratelimit_ttl_repairs_total",
		Help: "Total rate limit counters found without an expiry and re-armed",
	})
)

// Counter is the subset of the primary store the limiter needs.
type Counter interface {
	Connected() bool
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	IncrementWithTTL(ctx context.Context, key string) (int64, time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter counts requests per identifier in fixed windows.
type Limiter struct {
	counter Counter
	prefix  string
	logger  zerolog.Logger
}

// NewLimiter creates a limiter storing counters under prefix. A nil counter
// makes every check fail open.
func NewLimiter(counter Counter, prefix string, logger zerolog.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		prefix:  strings.TrimSuffix(prefix, ":"),
		logger:  logger,
	}
}

// Key returns the counter key for identifier.
func (l *Limiter) Key(identifier string) string {
	if l.prefix == "" {
		return KeySegment + ":" + identifier
	}
	return l.prefix + ":" + KeySegment + ":" + identifier
}

// Check counts one request for identifier and reports whether it is within
// limit for the current window. It never returns an error: any failure of the
// primary store allows the request.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	if window <= 0 {
		window = MinResetIn
	}
	if l.counter == nil || !l.counter.Connected() {
		decisionsTotal.WithLabelValues("fail_open").Inc()
		return failOpen(limit, window)
	}

	key := l.Key(identifier)

	// Opens the window with its expiry; a no-op while the window is running.
	if _, err := l.counter.SetNX(ctx, key, 0, window); err != nil {
		return l.failOpen(key, "setnx", err, limit, window)
	}

	count, ttl, err := l.counter.IncrementWithTTL(ctx, key)
	if err != nil {
		return l.failOpen(key, "incr", err, limit, window)
	}

	// The window expired between SETNX and INCR, so INCR created a key
	// without an expiry. Re-arm it or the counter never resets.
	if ttl == primary.NoExpiry || ttl == primary.KeyMissing {
		ttlRepairsTotal.Inc()
		l.logger.Debug().Str(logging.FieldKey, key).Msg("Rate limit counter had no expiry, re-applying window")
		if err := l.counter.Expire(ctx, key, window); err != nil {
			return l.failOpen(key, "expire", err, limit, window)
		}
		ttl = window
	}

	result := evaluate(count, limit, ttl)
	if result.Allowed {
		decisionsTotal.WithLabelValues("allowed").Inc()
		return result
	}

	decisionsTotal.WithLabelValues("rejected").Inc()
	l.logger.Warn().
		Str("identifier", identifier).
		Int64("count", count).
		Int("limit", limit).
		Dur("reset_in", result.ResetIn).
		Msg("Rate limit exceeded")
	return result
}

func (l *Limiter) failOpen(key, op string, err error, limit int, window time.Duration) Result {
	decisionsTotal.WithLabelValues("fail_open").Inc()
	l.logger.Warn().
		Err(err).
		Str(logging.FieldKey, key).
		Str("op", op).
		Str(logging.FieldErrorClass, string(primary.Classify(err))).
		Msg("Rate limit check failed, allowing request")
	return failOpen(limit, window)
}
