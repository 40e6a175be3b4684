// Package travelcache provides typed cache facades for the reservation
// domain. Each facade fixes the namespace and the default TTL of one data
// class; values are stored and returned through the two-tier cache.
//
// Reads decode into a caller-supplied destination, like json.Unmarshal:
//
//	var flights []Flight
//	if f.GetCachedFlightSearch(ctx, params, &flights) {
//		return flights
//	}
package travelcache

import (
	"context"
	"strconv"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/cache"
)

// Namespaces used by the facades.
const (
	NamespaceSearch       = "search"
	NamespaceFlight       = "flight"
	NamespacePricing      = "pricing"
	NamespaceAvailability = "availability"
	NamespaceAirports     = "airports"
	NamespaceAirlines     = "airlines"
	NamespaceCities       = "cities"
	NamespaceSession      = "session"
	NamespaceRoutes       = "routes"
	NamespaceUser         = "user"
	NamespaceConfig       = "config"
)

// Default TTLs per data class.
const (
	TTLAvailability  = 30 * time.Second
	TTLPricing       = 60 * time.Second
	TTLSearch        = 120 * time.Second
	TTLFlightDetails = 300 * time.Second
	TTLUser          = 300 * time.Second
	TTLSession       = 900 * time.Second
	TTLRoutes        = 600 * time.Second
	TTLReference     = 3600 * time.Second
	TTLStatic        = 86400 * time.Second
)

// FlightSearchParams identifies one flight search.
type FlightSearchParams struct {
	OriginID      int64  `json:"originId"`
	DestinationID int64  `json:"destinationId"`
	DepartureDate string `json:"departureDate"`
	ReturnDate    string `json:"returnDate,omitempty"`
	Passengers    int    `json:"passengers,omitempty"`
	CabinClass    string `json:"cabinClass,omitempty"`
}

type flightParams struct {
	FlightID int64 `json:"flightId"`
}

type pricingParams struct {
	FlightID   int64  `json:"flightId"`
	CabinClass string `json:"cabinClass,omitempty"`
}

type userParams struct {
	UserID int64 `json:"userId"`
}

type configParams struct {
	Name string `json:"name"`
}

// popularRoutesParams is the single entry of the routes namespace.
const popularRoutesParams = "popular"

// Facade wraps a cache manager with domain operations.
type Facade struct {
	cache *cache.Manager
}

// New creates a facade over m.
func New(m *cache.Manager) *Facade {
	return &Facade{cache: m}
}

// Cache returns the underlying manager.
func (f *Facade) Cache() *cache.Manager {
	return f.cache
}

// CacheFlightSearch caches search results for params.
func (f *Facade) CacheFlightSearch(ctx context.Context, params FlightSearchParams, results any) {
	f.cache.Set(ctx, NamespaceSearch, params, results, TTLSearch)
}

// GetCachedFlightSearch decodes cached search results for params into dest.
func (f *Facade) GetCachedFlightSearch(ctx context.Context, params FlightSearchParams, dest any) bool {
	return f.cache.Load(ctx, NamespaceSearch, params, dest)
}

// InvalidateFlightSearchCache drops every cached search result.
func (f *Facade) InvalidateFlightSearchCache(ctx context.Context) {
	f.cache.InvalidateNamespace(ctx, NamespaceSearch)
}

// CacheFlightDetails caches the details of one flight.
func (f *Facade) CacheFlightDetails(ctx context.Context, flightID int64, details any) {
	f.cache.Set(ctx, NamespaceFlight, flightParams{FlightID: flightID}, details, TTLFlightDetails)
}

// GetCachedFlightDetails decodes cached flight details into dest.
func (f *Facade) GetCachedFlightDetails(ctx context.Context, flightID int64, dest any) bool {
	return f.cache.Load(ctx, NamespaceFlight, flightParams{FlightID: flightID}, dest)
}

// InvalidateFlightDetails drops the cached details of one flight, e.g. after
// a schedule change.
func (f *Facade) InvalidateFlightDetails(ctx context.Context, flightID int64) {
	f.cache.Delete(ctx, NamespaceFlight, flightParams{FlightID: flightID})
}

// CachePricing caches the fares of a flight and cabin class.
func (f *Facade) CachePricing(ctx context.Context, flightID int64, cabinClass string, pricing any) {
	f.cache.Set(ctx, NamespacePricing, pricingParams{FlightID: flightID, CabinClass: cabinClass}, pricing, TTLPricing)
}

// GetCachedPricing decodes cached fares into dest.
func (f *Facade) GetCachedPricing(ctx context.Context, flightID int64, cabinClass string, dest any) bool {
	return f.cache.Load(ctx, NamespacePricing, pricingParams{FlightID: flightID, CabinClass: cabinClass}, dest)
}

// InvalidatePricingCache drops every cached fare, e.g. after a fare update.
func (f *Facade) InvalidatePricingCache(ctx context.Context) {
	f.cache.InvalidateNamespace(ctx, NamespacePricing)
}

// CacheAvailability caches seat availability of a flight.
func (f *Facade) CacheAvailability(ctx context.Context, flightID int64, availability any) {
	f.cache.Set(ctx, NamespaceAvailability, flightParams{FlightID: flightID}, availability, TTLAvailability)
}

// GetCachedAvailability decodes cached seat availability into dest.
func (f *Facade) GetCachedAvailability(ctx context.Context, flightID int64, dest any) bool {
	return f.cache.Load(ctx, NamespaceAvailability, flightParams{FlightID: flightID}, dest)
}

// InvalidateAvailability drops the cached availability of one flight, e.g.
// after a booking.
func (f *Facade) InvalidateAvailability(ctx context.Context, flightID int64) {
	f.cache.Delete(ctx, NamespaceAvailability, flightParams{FlightID: flightID})
}

// CachePopularRoutes caches the popular routes list.
func (f *Facade) CachePopularRoutes(ctx context.Context, routes any) {
	f.cache.Set(ctx, NamespaceRoutes, popularRoutesParams, routes, TTLRoutes)
}

// GetCachedPopularRoutes decodes the cached popular routes into dest.
func (f *Facade) GetCachedPopularRoutes(ctx context.Context, dest any) bool {
	return f.cache.Load(ctx, NamespaceRoutes, popularRoutesParams, dest)
}

// CacheUserSession caches the session of a user under a raw key.
func (f *Facade) CacheUserSession(ctx context.Context, userID int64, session any) {
	f.cache.SetRaw(ctx, sessionKey(userID), session, TTLSession)
}

// GetCachedUserSession decodes the cached session of a user into dest.
func (f *Facade) GetCachedUserSession(ctx context.Context, userID int64, dest any) bool {
	return f.cache.LoadRaw(ctx, sessionKey(userID), dest)
}

// InvalidateUserSession drops the cached session of a user, e.g. on logout.
func (f *Facade) InvalidateUserSession(ctx context.Context, userID int64) {
	f.cache.DeleteRaw(ctx, sessionKey(userID))
}

func sessionKey(userID int64) string {
	return NamespaceSession + ":" + strconv.FormatInt(userID, 10)
}

// CacheUserProfile caches the profile of a user.
func (f *Facade) CacheUserProfile(ctx context.Context, userID int64, profile any) {
	f.cache.Set(ctx, NamespaceUser, userParams{UserID: userID}, profile, TTLUser)
}

// GetCachedUserProfile decodes the cached profile of a user into dest.
func (f *Facade) GetCachedUserProfile(ctx context.Context, userID int64, dest any) bool {
	return f.cache.Load(ctx, NamespaceUser, userParams{UserID: userID}, dest)
}

// InvalidateUserProfile drops the cached profile of a user.
func (f *Facade) InvalidateUserProfile(ctx context.Context, userID int64) {
	f.cache.Delete(ctx, NamespaceUser, userParams{UserID: userID})
}

// CacheStaticConfig caches a named configuration document.
func (f *Facade) CacheStaticConfig(ctx context.Context, name string, value any) {
	f.cache.Set(ctx, NamespaceConfig, configParams{Name: name}, value, TTLStatic)
}

// GetCachedStaticConfig decodes a cached configuration document into dest.
func (f *Facade) GetCachedStaticConfig(ctx context.Context, name string, dest any) bool {
	return f.cache.Load(ctx, NamespaceConfig, configParams{Name: name}, dest)
}

// InvalidateStaticConfig drops every cached configuration document.
func (f *Facade) InvalidateStaticConfig(ctx context.Context) {
	f.cache.InvalidateNamespace(ctx, NamespaceConfig)
}
