package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/ais-cache/internal/testutil"
	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/Sternrassler/ais-cache/pkg/logging"
)

// findLine returns the first JSON log line in buf whose message is msg.
func findLine(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()

	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		if line["message"] == msg {
			return line
		}
	}
	t.Fatalf("no log line with message %q in:\n%s", msg, buf.String())
	return nil
}

func assertFields(t *testing.T, line map[string]any, want map[string]any) {
	t.Helper()
	for field, value := range want {
		if line[field] != value {
			t.Errorf("%s = %v, want %v (line %v)", field, line[field], value, line)
		}
	}
}

func TestCacheManagerLogFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.Setup(logging.Config{Level: logging.LevelDebug, Output: buf})

	mr := testutil.NewMockRedis(t)
	cfg := cache.DefaultConfig()
	cfg.Primary = testutil.PrimaryConfig(mr.URL())

	ctx := context.Background()
	m := cache.NewManager(cfg, logging.NewLogger(logging.ComponentCache))
	m.Start(ctx)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	assertFields(t, findLine(t, buf, "Primary store ready"), map[string]any{
		logging.FieldComponent: logging.ComponentCache,
		logging.FieldTier:      logging.TierPrimary,
	})

	m.InvalidateNamespace(ctx, "search")
	assertFields(t, findLine(t, buf, "Cache namespace invalidated"), map[string]any{
		logging.FieldComponent: logging.ComponentCache,
		logging.FieldNamespace: "search",
		logging.FieldVersion:   float64(2),
	})

	// Reply errors keep the connection but are counted and logged.
	mr.SetError("ERR simulated failure")

	m.SetRaw(ctx, "session:42", "token", time.Minute)
	assertFields(t, findLine(t, buf, "Cache operation failed, continuing with fallback"), map[string]any{
		logging.FieldKey:        "ais:session:42",
		logging.FieldErrorClass: "command",
		"op":                    "set",
	})

	res := m.CheckRateLimit(ctx, "admin:10.0.0.1", 5, time.Minute)
	if !res.Allowed {
		t.Fatal("rate limit must fail open on a primary store error")
	}
	line := findLine(t, buf, "Rate limit check failed, allowing request")
	assertFields(t, line, map[string]any{
		logging.FieldComponent:  logging.ComponentCache,
		logging.FieldFeature:    logging.FeatureRateLimit,
		logging.FieldKey:        "ais:ratelimit:admin:10.0.0.1",
		logging.FieldErrorClass: "command",
	})
	if _, ok := line[logging.FieldTier]; ok {
		t.Error("rate limiter lines must not carry the primary tier field")
	}
}
