// Package primary wraps the remote Redis key-value service used as the first
// tier of the cache. It owns the single client, tracks connection state and
// reconnects with a bounded back-off after transient failures.
//
// State machine:
//
//	disconnected -> connecting -> ready -> (error) -> reconnecting -> ready
//	                                                              \-> disconnected (gave up)
//
// Any state -> closed on Close.
package primary

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the primary connection.
var (
	primaryConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ais_primary_connected",
		Help: "1 when the primary store connection is ready, 0 otherwise",
	})

	reconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ais_primary_reconnect_attempts_total",
		Help: "Total number of primary store reconnect attempts",
	})

	primaryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ais_primary_errors_total",
		Help: "Total primary store command errors by class",
	}, []string{"class"})
)

// State is the connection state of the store.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the connection configuration.
type Config struct {
	// URL is a redis:// or rediss:// URL, or a bare host:port.
	URL string

	// ConnectTimeout bounds dialing and the readiness ping.
	ConnectTimeout time.Duration

	// CommandTimeout bounds reads and writes of a single command.
	CommandTimeout time.Duration

	// PoolSize is the maximum number of socket connections (0 uses the client default).
	PoolSize int

	// Reconnect is the back-off policy applied after transient failures.
	Reconnect ReconnectConfig
}

// DefaultConfig returns the default configuration for a local Redis.
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 3 * time.Second,
		Reconnect:      DefaultReconnectConfig(),
	}
}

// Store is the primary store adapter.
type Store struct {
	client *redis.Client
	cfg    Config
	logger zerolog.Logger

	mu              sync.Mutex
	state           atomic.Int32
	attempts        atomic.Int64
	cancelReconnect context.CancelFunc
	wg              sync.WaitGroup
}

// New builds a store from cfg. It does not connect; call Connect.
// An error means the configuration itself is unusable.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	return newStore(redis.NewClient(opts), cfg, logger), nil
}

func newStore(client *redis.Client, cfg Config, logger zerolog.Logger) *Store {
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect = DefaultReconnectConfig()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	s := &Store{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
	s.state.Store(int32(StateDisconnected))
	client.AddHook(stateHook{store: s})
	return s
}

func clientOptions(cfg Config) (*redis.Options, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultConfig().URL
	}

	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if _, _, err := net.SplitHostPort(url); err != nil {
			return nil, fmt.Errorf("parse redis address %q: %w", url, err)
		}
		opts = &redis.Options{Addr: url}
	}

	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout
	}
	if cfg.CommandTimeout > 0 {
		opts.ReadTimeout = cfg.CommandTimeout
		opts.WriteTimeout = cfg.CommandTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	// Reconnection is driven by the store's own policy; one client-level
	// retry only covers stale pooled connections.
	opts.MaxRetries = 1

	return opts, nil
}

// State returns the current connection state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Connected reports whether commands may be issued.
func (s *Store) Connected() bool {
	return s.State() == StateReady
}

// ReconnectAttempts returns the attempt counter of the current reconnect cycle.
func (s *Store) ReconnectAttempts() int {
	return int(s.attempts.Load())
}

// Connect pings the server and marks the store ready on success. On a
// transient failure a background reconnect cycle is started and the error is
// returned for logging; callers keep running on the fallback tier.
func (s *Store) Connect(ctx context.Context) error {
	if s.State() == StateClosed {
		return ErrClosed
	}

	s.setState(StateConnecting)
	s.logger.Info().Msg("Connecting to primary store")

	err := s.ping(ctx)
	if err == nil {
		s.setReady()
		s.logger.Info().Msg("Primary store ready")
		return nil
	}

	class := Classify(err)
	s.logger.Warn().Err(err).Str(logging.FieldErrorClass, string(class)).Msg("Primary store connect failed")
	if shouldReconnect(class) {
		s.scheduleReconnect()
	} else {
		s.giveUp()
	}
	return &Error{Op: "connect", Class: class, Err: err}
}

// ForceReconnect cancels any pending reconnect cycle, resets the attempt
// counter and connects again.
func (s *Store) ForceReconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	cancel := s.cancelReconnect
	s.cancelReconnect = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.attempts.Store(0)

	return s.Connect(ctx)
}

// Close cancels any pending reconnect and closes the client. It is safe to
// call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state.Store(int32(StateClosed))
	primaryConnected.Set(0)
	cancel := s.cancelReconnect
	s.cancelReconnect = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		// The pool is torn down regardless; the error only says a socket
		// did not close cleanly.
		s.logger.Warn().Err(err).Msg("Graceful primary disconnect failed, connections dropped")
		return fmt.Errorf("close primary store: %w", err)
	}
	s.logger.Info().Msg("Primary store disconnected")
	return nil
}

func (s *Store) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	s.state.Store(int32(state))
}

func (s *Store) setReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	s.state.Store(int32(StateReady))
	s.attempts.Store(0)
	s.releaseReconnectLocked()
	primaryConnected.Set(1)
}

func (s *Store) releaseReconnectLocked() {
	if s.cancelReconnect != nil {
		s.cancelReconnect()
		s.cancelReconnect = nil
	}
}

// giveUp leaves the store disconnected until ForceReconnect.
func (s *Store) giveUp() {
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state.Store(int32(StateDisconnected))
	s.releaseReconnectLocked()
	primaryConnected.Set(0)
	s.mu.Unlock()

	s.logger.Error().
		Int("attempts", s.ReconnectAttempts()).
		Msg("Primary store unavailable, giving up reconnecting; serving from memory fallback only")
}

// scheduleReconnect starts a reconnect cycle unless one is already running.
func (s *Store) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed || s.cancelReconnect != nil {
		return
	}
	s.state.Store(int32(StateReconnecting))
	primaryConnected.Set(0)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelReconnect = cancel
	s.wg.Add(1)
	go s.reconnectLoop(ctx)
}

// markDown reacts to a failed command. Only a ready store changes state.
func (s *Store) markDown(err error) {
	class := Classify(err)
	if class == ErrorClassNone || class == ErrorClassCommand {
		return
	}
	if s.State() != StateReady {
		return
	}

	s.logger.Warn().Err(err).Str(logging.FieldErrorClass, string(class)).Msg("Primary store connection lost")
	if shouldReconnect(class) {
		s.scheduleReconnect()
		return
	}
	s.giveUp()
}

// ping checks the server within ConnectTimeout. A server that does not answer
// in time is a transient failure; only cancellation of ctx by the caller
// keeps the command class.
func (s *Store) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	err := s.client.Ping(pingCtx).Err()
	if err != nil && ctx.Err() == nil && pingCtx.Err() != nil {
		return &Error{Op: "ping", Class: ErrorClassTransient, Err: err}
	}
	return err
}

// stateHook observes every command so connection loss is noticed by the
// store itself rather than by its callers.
type stateHook struct {
	store *Store
}

func (h stateHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stateHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(err)
		return err
	}
}

func (h stateHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.observe(err)
		return err
	}
}

func (h stateHook) observe(err error) {
	class := Classify(err)
	if class == ErrorClassNone {
		return
	}
	primaryErrorsTotal.WithLabelValues(string(class)).Inc()
	h.store.markDown(err)
}
