package primary

import (
	"context"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/logging"
)

// ReconnectConfig holds the reconnect back-off policy.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive reconnect attempts before the
	// store gives up and stays disconnected.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to get the delay.
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
}

// DefaultReconnectConfig returns the default reconnect policy.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 10,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the wait before the given attempt (1-based).
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * c.BaseDelay
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// reconnectLoop pings the server with back-off until it answers, the policy
// is exhausted, a fatal error is seen, or ctx is cancelled.
func (s *Store) reconnectLoop(ctx context.Context) {
	defer s.wg.Done()

	policy := s.cfg.Reconnect
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		delay := policy.Delay(attempt)
		s.attempts.Store(int64(attempt))
		reconnectAttemptsTotal.Inc()

		s.logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Dur("delay", delay).
			Msg("Scheduling primary store reconnect")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug().Int("attempt", attempt).Msg("Reconnect cancelled")
			return
		case <-timer.C:
		}

		s.setState(StateConnecting)
		err := s.ping(ctx)
		if err == nil {
			s.setReady()
			s.logger.Info().Int("attempt", attempt).Msg("Primary store reconnected")
			return
		}
		if ctx.Err() != nil {
			return
		}

		class := Classify(err)
		s.logger.Warn().
			Err(err).
			Int(logging.FieldAttempt, attempt).
			Str(logging.FieldErrorClass, string(class)).
			Msg("Primary store reconnect attempt failed")

		if !shouldReconnect(class) {
			break
		}
		s.setState(StateReconnecting)
	}

	s.giveUp()
}
