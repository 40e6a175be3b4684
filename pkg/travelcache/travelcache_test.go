package travelcache

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/ais-cache/internal/testutil"
	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flightSummary struct {
	ID           int    `json:"id"`
	FlightNumber string `json:"flightNumber"`
}

func setupFacade(t *testing.T) (*Facade, *testutil.MockRedis) {
	t.Helper()

	mr := testutil.NewMockRedis(t)
	cfg := cache.DefaultConfig()
	cfg.Primary = testutil.PrimaryConfig(mr.URL())

	m := cache.NewManager(cfg, testutil.Logger())
	m.Start(context.Background())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	return New(m), mr
}

func TestFlightSearch_EndToEnd(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	params := FlightSearchParams{OriginID: 1, DestinationID: 2, DepartureDate: "2026-03-01"}
	results := []flightSummary{{ID: 1, FlightNumber: "AA100"}}

	f.CacheFlightSearch(ctx, params, results)

	var got []flightSummary
	require.True(t, f.GetCachedFlightSearch(ctx, params, &got))
	assert.Equal(t, results, got)

	f.InvalidateFlightSearchCache(ctx)

	var after []flightSummary
	assert.False(t, f.GetCachedFlightSearch(ctx, params, &after))
	assert.Nil(t, after)
}

func TestFlightSearch_SameParamsFromMap(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	params := FlightSearchParams{OriginID: 1, DestinationID: 2, DepartureDate: "2026-03-01"}
	f.CacheFlightSearch(ctx, params, []flightSummary{{ID: 1, FlightNumber: "AA100"}})

	got, ok := cache.Get[[]flightSummary](ctx, f.Cache(), NamespaceSearch, map[string]any{
		"departureDate": "2026-03-01",
		"originId":      1,
		"destinationId": 2,
	})
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestFacade_DefaultTTLs(t *testing.T) {
	f, mr := setupFacade(t)
	ctx := context.Background()
	keys := f.Cache().Keys()

	f.CacheFlightSearch(ctx, FlightSearchParams{OriginID: 1}, []int{1})
	f.CacheFlightDetails(ctx, 7, "details")
	f.CachePricing(ctx, 7, "economy", 99.5)
	f.CacheAvailability(ctx, 7, 12)
	f.CachePopularRoutes(ctx, []string{"LHR-JFK"})
	f.CacheAirports(ctx, []string{"LHR"})
	f.CacheUserProfile(ctx, 42, "profile")
	f.CacheUserSession(ctx, 42, "session")
	f.CacheStaticConfig(ctx, "baggage", "rules")

	entry := func(ns string, params any) string {
		key, err := keys.Entry(ns, 1, params)
		require.NoError(t, err)
		return key
	}

	tests := []struct {
		name string
		key  string
		want time.Duration
	}{
		{name: "search", key: entry(NamespaceSearch, FlightSearchParams{OriginID: 1}), want: 120 * time.Second},
		{name: "flight details", key: entry(NamespaceFlight, flightParams{FlightID: 7}), want: 300 * time.Second},
		{name: "pricing", key: entry(NamespacePricing, pricingParams{FlightID: 7, CabinClass: "economy"}), want: 60 * time.Second},
		{name: "availability", key: entry(NamespaceAvailability, flightParams{FlightID: 7}), want: 30 * time.Second},
		{name: "popular routes", key: entry(NamespaceRoutes, popularRoutesParams), want: 600 * time.Second},
		{name: "reference", key: entry(NamespaceAirports, referenceParams), want: 3600 * time.Second},
		{name: "user", key: entry(NamespaceUser, userParams{UserID: 42}), want: 300 * time.Second},
		{name: "session", key: keys.Raw("session:42"), want: 900 * time.Second},
		{name: "static config", key: entry(NamespaceConfig, configParams{Name: "baggage"}), want: 86400 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, mr.Exists(tt.key), "key %s missing", tt.key)
			assert.Equal(t, tt.want, mr.TTL(tt.key))
		})
	}
}

func TestFacade_FlightDetails(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	f.CacheFlightDetails(ctx, 7, flightSummary{ID: 7, FlightNumber: "AA100"})

	var got flightSummary
	require.True(t, f.GetCachedFlightDetails(ctx, 7, &got))
	assert.Equal(t, flightSummary{ID: 7, FlightNumber: "AA100"}, got)
	assert.False(t, f.GetCachedFlightDetails(ctx, 8, &got))

	f.InvalidateFlightDetails(ctx, 7)
	assert.False(t, f.GetCachedFlightDetails(ctx, 7, &got))
}

func TestFacade_Pricing(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	f.CachePricing(ctx, 7, "economy", 99.5)
	f.CachePricing(ctx, 7, "business", 450.0)

	var economy, business float64
	require.True(t, f.GetCachedPricing(ctx, 7, "economy", &economy))
	require.True(t, f.GetCachedPricing(ctx, 7, "business", &business))
	assert.Equal(t, 99.5, economy)
	assert.Equal(t, 450.0, business)

	f.InvalidatePricingCache(ctx)
	assert.False(t, f.GetCachedPricing(ctx, 7, "economy", &economy))
	assert.False(t, f.GetCachedPricing(ctx, 7, "business", &business))
}

func TestFacade_Availability(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	f.CacheAvailability(ctx, 7, map[string]int{"economy": 12})

	var seats map[string]int
	require.True(t, f.GetCachedAvailability(ctx, 7, &seats))
	assert.Equal(t, 12, seats["economy"])

	f.InvalidateAvailability(ctx, 7)
	assert.False(t, f.GetCachedAvailability(ctx, 7, &seats))
}

func TestFacade_UserSession(t *testing.T) {
	f, mr := setupFacade(t)
	ctx := context.Background()

	type session struct {
		Token string `json:"token"`
	}

	f.CacheUserSession(ctx, 42, session{Token: "abc"})
	assert.True(t, mr.Exists("ais:session:42"))

	var got session
	require.True(t, f.GetCachedUserSession(ctx, 42, &got))
	assert.Equal(t, "abc", got.Token)

	f.InvalidateUserSession(ctx, 42)
	assert.False(t, f.GetCachedUserSession(ctx, 42, &got))
}

func TestFacade_UserProfileAndRoutes(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	f.CacheUserProfile(ctx, 42, map[string]string{"tier": "gold"})
	f.CachePopularRoutes(ctx, []string{"LHR-JFK", "CDG-FRA"})

	var profile map[string]string
	require.True(t, f.GetCachedUserProfile(ctx, 42, &profile))
	assert.Equal(t, "gold", profile["tier"])

	var routes []string
	require.True(t, f.GetCachedPopularRoutes(ctx, &routes))
	assert.Equal(t, []string{"LHR-JFK", "CDG-FRA"}, routes)

	f.InvalidateUserProfile(ctx, 42)
	assert.False(t, f.GetCachedUserProfile(ctx, 42, &profile))
}

func TestFacade_StaticConfig(t *testing.T) {
	f, _ := setupFacade(t)
	ctx := context.Background()

	f.CacheStaticConfig(ctx, "baggage", map[string]int{"cabinKg": 8})

	var rules map[string]int
	require.True(t, f.GetCachedStaticConfig(ctx, "baggage", &rules))
	assert.Equal(t, 8, rules["cabinKg"])

	f.InvalidateStaticConfig(ctx)
	assert.False(t, f.GetCachedStaticConfig(ctx, "baggage", &rules))
}
