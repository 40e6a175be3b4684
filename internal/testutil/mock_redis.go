// Package testutil provides test helpers backed by an in-process Redis.
package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/primary"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

// UnreachableAddr is an address nothing listens on, used to simulate a
// primary store that is down for the whole test.
const UnreachableAddr = "127.0.0.1:1"

// MockRedis is an in-process Redis server whose availability can be toggled.
type MockRedis struct {
	*miniredis.Miniredis
	t testing.TB
}

// NewMockRedis starts a server that is stopped when the test ends.
func NewMockRedis(t testing.TB) *MockRedis {
	t.Helper()
	return &MockRedis{Miniredis: miniredis.RunT(t), t: t}
}

// URL returns the redis:// URL of the server.
func (m *MockRedis) URL() string {
	return "redis://" + m.Addr()
}

// Outage stops accepting connections and drops existing ones. Data is kept.
func (m *MockRedis) Outage() {
	m.Close()
}

// Recover restarts the server on the same address after an Outage.
func (m *MockRedis) Recover() {
	m.t.Helper()
	if err := m.Restart(); err != nil {
		m.t.Fatalf("restart mock redis: %v", err)
	}
}

// PrimaryConfig returns a primary store configuration with short timeouts and
// a fast, short reconnect policy suitable for tests.
func PrimaryConfig(url string) primary.Config {
	return primary.Config{
		URL:            url,
		ConnectTimeout: 200 * time.Millisecond,
		CommandTimeout: 200 * time.Millisecond,
		Reconnect: primary.ReconnectConfig{
			MaxAttempts: 2,
			BaseDelay:   5 * time.Millisecond,
			MaxDelay:    10 * time.Millisecond,
		},
	}
}

// Logger returns a logger that discards everything.
func Logger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// ConnectedPrimary returns a primary store connected to m, closed on cleanup.
func ConnectedPrimary(t testing.TB, m *MockRedis) *primary.Store {
	t.Helper()

	store, err := primary.New(PrimaryConfig(m.URL()), Logger())
	if err != nil {
		t.Fatalf("new primary store: %v", err)
	}
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("connect primary store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
