//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/ais-cache/internal/testutil"
	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/Sternrassler/ais-cache/pkg/primary"
	"github.com/Sternrassler/ais-cache/pkg/travelcache"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address and a direct
// client for inspecting keys.
func setupRedis(t *testing.T) (testcontainers.Container, string, *redis.Client) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	addr := host + ":" + port.Port()
	redisClient := redis.NewClient(&redis.Options{Addr: addr})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return container, addr, redisClient
}

// setupManager returns a started cache over a real Redis.
func setupManager(t *testing.T) (*cache.Manager, testcontainers.Container, *redis.Client) {
	t.Helper()

	container, addr, redisClient := setupRedis(t)

	cfg := cache.DefaultConfig()
	cfg.Primary = testutil.PrimaryConfig("redis://" + addr)
	cfg.Primary.ConnectTimeout = 2 * time.Second
	cfg.Primary.CommandTimeout = time.Second
	cfg.FallbackCapacity = 1000

	m := cache.NewManager(cfg, testutil.Logger())
	m.Start(context.Background())
	if !m.Stats().PrimaryConnected {
		t.Fatal("primary store should be connected")
	}

	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, container, redisClient
}

func TestRoundTripAndInvalidation(t *testing.T) {
	m, _, redisClient := setupManager(t)
	ctx := context.Background()

	params := map[string]any{"originId": 1, "destinationId": 2}
	m.Set(ctx, "search", params, []string{"AA100", "BA200"}, time.Minute)

	got, ok := cache.Get[[]string](ctx, m, "search", map[string]any{"destinationId": 2, "originId": 1})
	if !ok || len(got) != 2 {
		t.Fatalf("Expected cache hit with 2 flights, got %v (ok=%v)", got, ok)
	}

	key, _ := m.Keys().Entry("search", 1, params)
	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL within (0, 1m], got %v", ttl)
	}

	m.InvalidateNamespace(ctx, "search")

	version, err := redisClient.Get(ctx, "ais:version:search").Result()
	if err != nil {
		t.Fatalf("Get version: %v", err)
	}
	if version != "2" {
		t.Errorf("Expected version 2, got %s", version)
	}
	if _, ok := cache.Get[[]string](ctx, m, "search", params); ok {
		t.Error("Expected miss after invalidation")
	}

	// The old entry is orphaned, not deleted; it expires on its own.
	if n, _ := redisClient.Exists(ctx, key).Result(); n != 1 {
		t.Errorf("Expected the old entry to remain until its TTL, exists=%d", n)
	}
}

func TestClearAll(t *testing.T) {
	m, _, redisClient := setupManager(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		m.SetRaw(ctx, fmt.Sprintf("session:%d", i), i, time.Minute)
	}
	if err := redisClient.Set(ctx, "other:key", "kept", 0).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deleted := m.ClearAll(ctx)
	if deleted != 250 {
		t.Errorf("Expected 250 deleted keys, got %d", deleted)
	}

	keys, err := redisClient.Keys(ctx, "*").Result()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "other:key" {
		t.Errorf("Expected only other:key to remain, got %v", keys)
	}
}

func TestRateLimit(t *testing.T) {
	m, _, redisClient := setupManager(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res := m.CheckRateLimit(ctx, "client-1", 3, 30*time.Second)
		if !res.Allowed || res.Remaining != 3-i {
			t.Fatalf("request %d: got %+v", i, res)
		}
	}

	res := m.CheckRateLimit(ctx, "client-1", 3, 30*time.Second)
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("Expected rejection, got %+v", res)
	}
	if res.ResetIn < time.Second || res.ResetIn > 30*time.Second {
		t.Errorf("Expected reset within the window, got %v", res.ResetIn)
	}

	ttl, err := redisClient.TTL(ctx, "ais:ratelimit:client-1").Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 {
		t.Errorf("Expected the counter to carry the window TTL, got %v", ttl)
	}
}

func TestFallbackDuringOutage(t *testing.T) {
	m, container, _ := setupManager(t)
	ctx := context.Background()

	f := travelcache.New(m)
	f.CacheFlightDetails(ctx, 42, map[string]string{"flightNumber": "LH400"})

	timeout := 5 * time.Second
	if err := container.Stop(ctx, &timeout); err != nil {
		t.Fatalf("Failed to stop Redis container: %v", err)
	}

	var details map[string]string
	if !f.GetCachedFlightDetails(ctx, 42, &details) {
		t.Fatal("Expected the fallback tier to serve the entry during the outage")
	}
	if details["flightNumber"] != "LH400" {
		t.Errorf("Expected LH400, got %v", details)
	}

	stats := m.Stats()
	if stats.FallbackUses == 0 {
		t.Error("Expected fallback_uses > 0")
	}
	if stats.PrimaryState == primary.StateReady.String() {
		t.Error("Expected the primary store to have left the ready state")
	}

	// Writes during the outage land in the fallback tier.
	f.CacheFlightDetails(ctx, 43, map[string]string{"flightNumber": "LH401"})
	if !f.GetCachedFlightDetails(ctx, 43, &details) {
		t.Error("Expected a write during the outage to be readable")
	}
}
