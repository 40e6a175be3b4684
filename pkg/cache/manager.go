package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/logging"
	"github.com/Sternrassler/ais-cache/pkg/lru"
	"github.com/Sternrassler/ais-cache/pkg/primary"
	"github.com/Sternrassler/ais-cache/pkg/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is used when Set is called with a non-positive TTL.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is the period of the fallback expiry sweep.
	DefaultSweepInterval = 60 * time.Second

	// clearScanCount is the SCAN page size used by ClearAll.
	clearScanCount = 100

	// initialVersion is the version of a namespace that was never invalidated.
	initialVersion int64 = 1
)

// PrimaryStore is the remote tier. *primary.Store implements it.
type PrimaryStore interface {
	ratelimit.Counter

	State() primary.State
	Connect(ctx context.Context) error
	ForceReconnect(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	BumpVersion(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) (time.Duration, error)
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}

var _ PrimaryStore = (*primary.Store)(nil)

// Config holds the cache configuration.
type Config struct {
	// KeyPrefix namespaces every key this cache writes (default "ais").
	KeyPrefix string

	// Primary configures the remote tier.
	Primary primary.Config

	// FallbackCapacity is the maximum number of entries in the in-memory tier.
	FallbackCapacity int

	// SweepInterval is the period of the fallback expiry sweep.
	SweepInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:        DefaultKeyPrefix,
		Primary:          primary.DefaultConfig(),
		FallbackCapacity: lru.DefaultCapacity,
		SweepInterval:    DefaultSweepInterval,
	}
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	codec         Codec
	primary       PrimaryStore
	fallbackClock func() time.Time
}

// WithCodec replaces the default JSON codec.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithPrimary uses store as the remote tier instead of building one from
// Config.Primary.
func WithPrimary(store PrimaryStore) Option {
	return func(o *options) {
		o.primary = store
	}
}

// WithFallbackClock replaces time.Now in the fallback tier.
func WithFallbackClock(now func() time.Time) Option {
	return func(o *options) {
		o.fallbackClock = now
	}
}

// Manager is the two-tier cache. Reads try the primary store first and fall
// back to the in-memory tier; writes always land in the in-memory tier and
// best-effort in the primary. No operation returns an error to its caller:
// failures are logged, counted and answered from the fallback tier.
type Manager struct {
	cfg      Config
	keys     KeyBuilder
	codec    Codec
	primary  PrimaryStore
	fallback *lru.Store[[]byte]
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger

	counters  counters
	versions  *versionTable
	flights   singleflight.Group
	startedAt time.Time

	mu        sync.Mutex
	started   bool
	stopSweep context.CancelFunc
	sweepDone chan struct{}

	evictionsMu   sync.Mutex
	lastEvictions uint64

	shutdownOnce sync.Once
	closed       atomic.Bool
}

// NewManager creates a cache. It does not connect; call Start. An unusable
// primary configuration is logged and the cache runs on the fallback tier only.
func NewManager(cfg Config, logger zerolog.Logger, opts ...Option) *Manager {
	o := options{codec: JSONCodec{}}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	var lruOpts []lru.Option
	if o.fallbackClock != nil {
		lruOpts = append(lruOpts, lru.WithClock(o.fallbackClock))
	}

	m := &Manager{
		cfg:       cfg,
		keys:      NewKeyBuilder(cfg.KeyPrefix),
		codec:     o.codec,
		fallback:  lru.New[[]byte](cfg.FallbackCapacity, lruOpts...),
		logger:    logger,
		versions:  newVersionTable(),
		startedAt: time.Now(),
	}

	if o.primary != nil {
		m.primary = o.primary
	} else {
		store, err := primary.New(cfg.Primary, logging.WithTier(logger, logging.TierPrimary))
		if err != nil {
			logger.Error().Err(err).Msg("Invalid primary store configuration, serving from memory fallback only")
		} else {
			m.primary = store
		}
	}

	var counter ratelimit.Counter
	if m.primary != nil {
		counter = m.primary
	}
	m.limiter = ratelimit.NewLimiter(counter, m.keys.Prefix, logging.WithFeature(logger, logging.FeatureRateLimit))

	return m
}

// Keys returns the key builder of this cache.
func (m *Manager) Keys() KeyBuilder {
	return m.keys
}

// Start connects the primary store and starts the periodic fallback sweep.
// A failed connect is logged; reads and writes are then served by the
// fallback tier while the primary store reconnects in the background.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed.Load() {
		m.mu.Unlock()
		return
	}
	m.started = true
	sweepCtx, cancel := context.WithCancel(context.Background())
	m.stopSweep = cancel
	m.sweepDone = make(chan struct{})
	go m.sweepLoop(sweepCtx, m.cfg.SweepInterval, m.sweepDone)
	m.mu.Unlock()

	if m.primary == nil {
		m.logger.Warn().Msg("No primary store configured, serving from memory fallback only")
		return
	}
	if err := m.primary.Connect(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Primary store unavailable at startup, serving from memory fallback")
	}
}

// Shutdown stops the sweep, closes the primary store and clears the fallback
// tier. It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		m.closed.Store(true)

		m.mu.Lock()
		cancel, done := m.stopSweep, m.sweepDone
		m.stopSweep = nil
		m.mu.Unlock()

		if cancel != nil {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}

		if m.primary != nil {
			if cerr := m.primary.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}

		m.fallback.Clear()
		FallbackEntries.Set(0)
		m.logger.Info().Msg("Cache shut down")
	})
	return err
}

// ForceReconnect restarts the primary store connection with a fresh
// reconnect budget.
func (m *Manager) ForceReconnect(ctx context.Context) error {
	if m.primary == nil {
		return errors.New("no primary store configured")
	}
	m.logger.Info().Msg("Forcing primary store reconnect")
	return m.primary.ForceReconnect(ctx)
}

// CheckRateLimit counts one request for identifier. See ratelimit.Limiter.
func (m *Manager) CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) ratelimit.Result {
	return m.limiter.Check(ctx, identifier, limit, window)
}

// Get returns the value cached for params in namespace.
func Get[T any](ctx context.Context, m *Manager, namespace string, params any) (T, bool) {
	key, ok := m.entryKey(ctx, namespace, params)
	if !ok {
		var zero T
		m.recordMiss(key)
		return zero, false
	}
	return getTyped[T](ctx, m, key)
}

// GetRaw returns the value cached under key, bypassing namespaces and versions.
func GetRaw[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	return getTyped[T](ctx, m, m.keys.Raw(key))
}

func getTyped[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	var out T
	found := m.lookup(ctx, key, func(data []byte) error {
		var v T
		if err := m.codec.Unmarshal(data, &v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, found
}

// Load decodes the value cached for params in namespace into dest.
func (m *Manager) Load(ctx context.Context, namespace string, params any, dest any) bool {
	key, ok := m.entryKey(ctx, namespace, params)
	if !ok {
		m.recordMiss(key)
		return false
	}
	return m.lookup(ctx, key, func(data []byte) error {
		return m.codec.Unmarshal(data, dest)
	})
}

// LoadRaw decodes the value cached under key into dest.
func (m *Manager) LoadRaw(ctx context.Context, key string, dest any) bool {
	return m.lookup(ctx, m.keys.Raw(key), func(data []byte) error {
		return m.codec.Unmarshal(data, dest)
	})
}

// Set caches value for params in namespace. A non-positive ttl means DefaultTTL.
func (m *Manager) Set(ctx context.Context, namespace string, params any, value any, ttl time.Duration) {
	key, ok := m.entryKey(ctx, namespace, params)
	if !ok {
		return
	}
	m.store(ctx, key, value, ttl)
}

// SetRaw caches value under key, bypassing namespaces and versions.
func (m *Manager) SetRaw(ctx context.Context, key string, value any, ttl time.Duration) {
	m.store(ctx, m.keys.Raw(key), value, ttl)
}

// Delete removes the value cached for params in namespace.
func (m *Manager) Delete(ctx context.Context, namespace string, params any) {
	key, ok := m.entryKey(ctx, namespace, params)
	if !ok {
		return
	}
	m.remove(ctx, key)
}

// DeleteRaw removes the value cached under key.
func (m *Manager) DeleteRaw(ctx context.Context, key string) {
	m.remove(ctx, m.keys.Raw(key))
}

// InvalidateNamespace makes every entry of namespace unreachable. With the
// primary store available the namespace version is bumped; the fallback tier
// is always swept by key pattern.
func (m *Manager) InvalidateNamespace(ctx context.Context, namespace string) {
	version := int64(0)
	if m.primaryReady() {
		versionKey := m.keys.Version(namespace)
		v, err := m.primary.BumpVersion(ctx, versionKey)
		if err != nil {
			m.recordError("invalidate", versionKey, err)
		} else {
			version = v
			m.versions.record(namespace, v)
		}
	}

	removed := m.fallback.DeletePattern(m.keys.NamespacePattern(namespace))
	Invalidations.WithLabelValues(namespace).Inc()

	m.logger.Info().
		Str(logging.FieldNamespace, namespace).
		Int64(logging.FieldVersion, version).
		Int("fallback_removed", removed).
		Msg("Cache namespace invalidated")
}

// ClearAll empties the fallback tier and deletes every key under the prefix
// from the primary store. Keys are collected with an incremental SCAN until
// the cursor returns to 0, then deleted in batches. It returns the number of
// primary keys deleted.
func (m *Manager) ClearAll(ctx context.Context) int64 {
	m.fallback.Clear()
	m.versions.reset()
	m.syncFallbackMetrics()

	if !m.primaryReady() {
		m.logger.Info().Msg("Fallback cache cleared, primary store unavailable")
		return 0
	}

	pattern := m.keys.AllPattern()
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		page, next, err := m.primary.Scan(ctx, cursor, pattern, clearScanCount)
		if err != nil {
			m.recordError("clear", pattern, err)
			break
		}
		// SCAN may return a key more than once.
		for _, k := range page {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int64
	for start := 0; start < len(keys); start += clearScanCount {
		end := start + clearScanCount
		if end > len(keys) {
			end = len(keys)
		}
		n, err := m.primary.Delete(ctx, keys[start:end]...)
		if err != nil {
			m.recordError("clear", pattern, err)
			break
		}
		deleted += n
	}

	m.logger.Info().Int64("deleted", deleted).Msg("Cache cleared")
	return deleted
}

// lookup reads key from the primary store, then from the fallback tier.
// decode failures count as misses of that tier.
func (m *Manager) lookup(ctx context.Context, key string, decode func([]byte) error) bool {
	if m.primaryReady() {
		data, ttl, found, err := m.primary.GetWithTTL(ctx, key)
		switch {
		case err != nil:
			m.recordError("get", key, err)
		case found:
			if derr := decode(data); derr != nil {
				m.recordError("decode", key, derr)
				break
			}
			// An entry about to expire is not re-seeded into the fallback.
			if ttl > 0 {
				m.fallback.Set(key, data, ttl)
			}
			m.counters.hits.Add(1)
			CacheHits.WithLabelValues(tierPrimary).Inc()
			m.logger.Debug().Str(logging.FieldKey, key).Dur("ttl", ttl).Msg("Cache hit")
			return true
		}
	}

	if data, ok := m.fallback.Get(key); ok {
		if err := decode(data); err != nil {
			m.fallback.Delete(key)
			m.recordError("decode", key, err)
		} else {
			m.counters.hits.Add(1)
			m.counters.fallbackUses.Add(1)
			CacheHits.WithLabelValues(tierFallback).Inc()
			FallbackUses.Inc()
			m.logger.Debug().Str(logging.FieldKey, key).Msg("Cache hit (fallback)")
			return true
		}
	}

	m.recordMiss(key)
	return false
}

func (m *Manager) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := m.codec.Marshal(value)
	if err != nil {
		m.recordError("encode", key, err)
		return
	}

	m.fallback.Set(key, data, ttl)
	m.syncFallbackMetrics()
	m.counters.sets.Add(1)
	CacheSets.Inc()

	if m.primaryReady() {
		if err := m.primary.SetWithExpiry(ctx, key, data, ttl); err != nil {
			m.recordError("set", key, err)
		}
	}

	m.logger.Debug().Str(logging.FieldKey, key).Dur("ttl", ttl).Msg("Cache set")
}

func (m *Manager) remove(ctx context.Context, key string) {
	m.fallback.Delete(key)
	m.syncFallbackMetrics()
	if m.primaryReady() {
		if _, err := m.primary.Delete(ctx, key); err != nil {
			m.recordError("delete", key, err)
		}
	}
	m.counters.deletes.Add(1)
	CacheDeletes.Inc()
}

// entryKey derives the key for params at the current namespace version.
func (m *Manager) entryKey(ctx context.Context, namespace string, params any) (string, bool) {
	key, err := m.keys.Entry(namespace, m.version(ctx, namespace), params)
	if err != nil {
		m.recordError("encode", namespace, err)
		return namespace, false
	}
	return key, true
}

// version returns the current version of namespace, or 1 when the primary
// store is unavailable or holds no counter.
func (m *Manager) version(ctx context.Context, namespace string) int64 {
	if !m.primaryReady() {
		return initialVersion
	}

	versionKey := m.keys.Version(namespace)
	data, found, err := m.primary.Get(ctx, versionKey)
	if err != nil {
		m.recordError("version", versionKey, err)
		return initialVersion
	}

	version := initialVersion
	if found {
		v, err := primary.ParseInt(data)
		if err != nil || v < initialVersion {
			m.logger.Warn().Str(logging.FieldKey, versionKey).Bytes("value", data).Msg("Ignoring malformed namespace version")
		} else {
			version = v
		}
	}
	m.versions.record(namespace, version)
	return version
}

func (m *Manager) primaryReady() bool {
	return m.primary != nil && m.primary.Connected()
}

func (m *Manager) primaryState() string {
	if m.primary == nil {
		return "unconfigured"
	}
	return m.primary.State().String()
}

func (m *Manager) recordMiss(key string) {
	m.counters.misses.Add(1)
	CacheMisses.Inc()
	m.logger.Debug().Str(logging.FieldKey, key).Msg("Cache miss")
}

func (m *Manager) recordError(op, key string, err error) {
	m.counters.errors.Add(1)
	CacheErrors.WithLabelValues(op).Inc()
	m.logger.Warn().
		Err(err).
		Str("op", op).
		Str(logging.FieldKey, key).
		Str(logging.FieldErrorClass, string(primary.Classify(err))).
		Msg("Cache operation failed, continuing with fallback")
}

func (m *Manager) sweepLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep removes expired entries from the fallback tier and returns how many
// were removed. It runs periodically after Start.
func (m *Manager) Sweep() int {
	removed := m.fallback.SweepExpired()
	m.syncFallbackMetrics()
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Msg("Swept expired fallback entries")
	}
	return removed
}

func (m *Manager) syncFallbackMetrics() {
	m.evictionsMu.Lock()
	if ev := m.fallback.Evictions(); ev > m.lastEvictions {
		Evictions.Add(float64(ev - m.lastEvictions))
		m.lastEvictions = ev
	}
	m.evictionsMu.Unlock()

	FallbackEntries.Set(float64(m.fallback.Len()))
}
