package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	// Registers the cache, primary and ratelimit metrics.
	_ "github.com/Sternrassler/ais-cache/pkg/cache"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	// Metrics without labels are exported as soon as they are registered.
	for _, name := range []string{
		"ais_cache_misses_total",
		"ais_cache_sets_total",
		"ais_cache_fallback_entries",
		"ais_primary_connected",
		"ais_primary_reconnect_attempts_total",
		"ais_ratelimit_ttl_repairs_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestNamesAreRegistered(t *testing.T) {
	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	registered := make(map[string]bool)
	for _, f := range families {
		registered[f.GetName()] = true
	}

	for _, name := range Names {
		if strings.HasSuffix(name, "_total") && !registered[name] {
			// Labeled counters appear after their first observation.
			continue
		}
		if !registered[name] {
			t.Errorf("metric %s is not registered", name)
		}
	}
}
