package warehouse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/geocode"
)

// Provider fetches raw records from the external tabular store.
type Provider interface {
	// FetchWarehouses retrieves all warehouse records.
	FetchWarehouses(ctx context.Context) ([]Record, error)

	// FetchRequestCounts retrieves per-warehouse request counts, keyed by
	// warehouse record ID.
	FetchRequestCounts(ctx context.Context) (map[string]int, error)

	// FetchRequestCountsByLocation retrieves request counts keyed by
	// "City,State".
	FetchRequestCountsByLocation(ctx context.Context) (map[string]int, error)

	// FetchRequestTotals retrieves the total request count and the request
	// creation timestamps.
	FetchRequestTotals(ctx context.Context) (RequestTotals, error)
}

// ServiceConfig holds configuration for the warehouse service.
type ServiceConfig struct {
	// Provider is the tabular store client.
	Provider Provider

	// Geocoder resolves origin zip codes for nearby search.
	Geocoder geocode.Geocoder

	// Cache is the shared TTL cache.
	Cache *cache.Service

	// Logger for service operations.
	Logger zerolog.Logger

	// Clock is the time source (defaults to the wall clock).
	Clock clockwork.Clock

	// CheckInterval gates upstream freshness checks (default: 5 minutes).
	CheckInterval time.Duration
}

// Service provides normalized warehouse data with cache-aside reads and
// periodic upstream freshness checks.
type Service struct {
	provider      Provider
	geocoder      geocode.Geocoder
	cache         *cache.Service
	logger        zerolog.Logger
	clock         clockwork.Clock
	checkInterval time.Duration

	mu                sync.Mutex
	lastUpstreamCheck time.Time
}

// NewService creates a new warehouse service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	checkInterval := cfg.CheckInterval
	if checkInterval == 0 {
		checkInterval = 5 * time.Minute
	}

	return &Service{
		provider:      cfg.Provider,
		geocoder:      cfg.Geocoder,
		cache:         cfg.Cache,
		logger:        cfg.Logger,
		clock:         clock,
		checkInterval: checkInterval,
	}
}

// shouldCheckUpstream reports whether enough time has passed since the last
// upstream freshness check, and records the check when it has.
func (s *Service) shouldCheckUpstream() bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastUpstreamCheck) > s.checkInterval {
		s.lastUpstreamCheck = now
		return true
	}
	return false
}

// Warehouses returns the normalized warehouse master list. Results are
// cached; a periodic freshness check or force triggers a refetch even when
// a cached copy exists.
func (s *Service) Warehouses(ctx context.Context, force bool) ([]Warehouse, error) {
	shouldCheck := s.shouldCheckUpstream() || force

	if !shouldCheck {
		if v, ok := s.cache.Get(keyMaster); ok {
			if warehouses, ok := v.([]Warehouse); ok {
				return warehouses, nil
			}
		}
	}

	records, err := s.provider.FetchWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch warehouses: %w", err)
	}

	counts, err := s.RequestCounts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("request counts unavailable, defaulting to zero")
		counts = map[string]int{}
	}

	warehouses := make([]Warehouse, 0, len(records))
	for _, rec := range records {
		warehouses = append(warehouses, Normalize(rec, counts[rec.ID]))
	}

	// Shorter TTL when the fetch came from a freshness check.
	ttl := time.Hour
	if shouldCheck {
		ttl = 30 * time.Minute
	}
	s.cache.Set(keyMaster, warehouses, ttl)

	s.logger.Debug().
		Int("count", len(warehouses)).
		Dur("ttl", ttl).
		Msg("warehouse master list refreshed")

	return warehouses, nil
}

// RequestCounts returns per-warehouse request counts keyed by warehouse
// record ID.
func (s *Service) RequestCounts(ctx context.Context) (map[string]int, error) {
	if v, ok := s.cache.Get(keyRequestCounts); ok {
		if counts, ok := v.(map[string]int); ok {
			return counts, nil
		}
	}

	counts, err := s.provider.FetchRequestCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch request counts: %w", err)
	}

	s.cache.Set(keyRequestCounts, counts, time.Hour)
	return counts, nil
}

// RequestCountsByLocation returns request counts keyed by "City,State".
func (s *Service) RequestCountsByLocation(ctx context.Context) (map[string]int, error) {
	if v, ok := s.cache.Get(keyRequestsByLocation); ok {
		if counts, ok := v.(map[string]int); ok {
			return counts, nil
		}
	}

	counts, err := s.provider.FetchRequestCountsByLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch request counts by location: %w", err)
	}

	s.cache.Set(keyRequestsByLocation, counts, time.Hour)
	return counts, nil
}

func (s *Service) totals(ctx context.Context) (RequestTotals, error) {
	if v, ok := s.cache.Get(keyRequestTotals); ok {
		if t, ok := v.(RequestTotals); ok {
			return t, nil
		}
	}

	t, err := s.provider.FetchRequestTotals(ctx)
	if err != nil {
		return RequestTotals{}, fmt.Errorf("fetch request totals: %w", err)
	}

	s.cache.Set(keyRequestTotals, t, time.Hour)
	return t, nil
}

// TotalRequests returns the total number of requests in the store.
func (s *Service) TotalRequests(ctx context.Context) (int, error) {
	t, err := s.totals(ctx)
	if err != nil {
		return 0, err
	}
	return t.Total, nil
}

// RequestTimes returns the creation timestamps of all requests, for trend
// window computations.
func (s *Service) RequestTimes(ctx context.Context) ([]time.Time, error) {
	t, err := s.totals(ctx)
	if err != nil {
		return nil, err
	}
	return t.Created, nil
}

// MonthlyAverage returns the average number of requests per day for the
// current calendar month, rounded up so capacity is never underestimated.
func (s *Service) MonthlyAverage(ctx context.Context) (int, error) {
	if v, ok := s.cache.Get(keyMonthlyAverage); ok {
		if avg, ok := v.(int); ok {
			return avg, nil
		}
	}

	t, err := s.totals(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	monthly := 0
	for _, created := range t.Created {
		if !created.Before(monthStart) {
			monthly++
		}
	}

	avg := int(math.Ceil(float64(monthly) / float64(now.Day())))

	s.cache.Set(keyMonthlyAverage, avg, time.Hour)
	return avg, nil
}

// Nearby returns warehouses within radiusMiles of the origin zip code,
// sorted by tier rank then distance. An unresolvable origin returns an
// error wrapping ErrUnknownZip.
func (s *Service) Nearby(ctx context.Context, originZip string, radiusMiles float64) ([]NearbyWarehouse, error) {
	origin, err := s.geocoder.Lookup(ctx, originZip)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownZip, originZip)
		}
		return nil, fmt.Errorf("geocode origin %s: %w", originZip, err)
	}

	warehouses, err := s.Warehouses(ctx, false)
	if err != nil {
		return nil, err
	}

	// Straight-line prefilter at twice the radius, then keep those inside it.
	type candidate struct {
		warehouse Warehouse
		distance  float64
	}
	var candidates []candidate
	for _, w := range warehouses {
		if !w.Valid() {
			continue
		}
		d := geo.Miles(origin, w.Coordinate)
		if d <= radiusMiles*2 {
			candidates = append(candidates, candidate{w, d})
		}
	}

	nearby := make([]NearbyWarehouse, 0, len(candidates))
	for _, c := range candidates {
		if c.distance > radiusMiles {
			continue
		}
		tags := c.warehouse.MissingFields()
		nearby = append(nearby, NearbyWarehouse{
			Warehouse:        c.warehouse,
			DistanceMiles:    c.distance,
			TierRank:         TierRank(c.warehouse.Tier),
			Tags:             tags,
			HasMissingFields: len(tags) > 0,
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].TierRank != nearby[j].TierRank {
			return nearby[i].TierRank < nearby[j].TierRank
		}
		return nearby[i].DistanceMiles < nearby[j].DistanceMiles
	})

	s.logger.Debug().
		Str("origin_zip", originZip).
		Float64("radius_miles", radiusMiles).
		Int("matches", len(nearby)).
		Msg("nearby search completed")

	return nearby, nil
}

// Invalidate clears all warehouse and request cache entries. Webhook
// deliveries call this when the upstream store changes.
func (s *Service) Invalidate() int {
	removed := s.cache.ClearNamespace(NamespaceWarehouses, NamespaceRequests)
	s.logger.Info().Int("removed", removed).Msg("warehouse cache invalidated")
	return removed
}

// CacheReport returns cache statistics and operator recommendations. Extra
// namespace prefixes may be passed to include keys owned by other packages
// sharing the same cache.
func (s *Service) CacheReport(extraNamespaces ...string) CacheReport {
	prefixes := append([]string{NamespaceWarehouses, NamespaceRequests}, extraNamespaces...)
	stats := s.cache.Stats(prefixes...)

	s.mu.Lock()
	lastCheck := s.lastUpstreamCheck
	s.mu.Unlock()

	age := s.clock.Now().Sub(lastCheck).Hours()

	recommendations := []string{}
	if age > 2 {
		recommendations = append(recommendations, "Consider refreshing cache - data is over 2 hours old")
	}
	if stats.Expired > stats.Active {
		recommendations = append(recommendations, "High expired entries - consider shorter TTL")
	}
	if stats.Namespaces[NamespaceWarehouses] == 0 {
		recommendations = append(recommendations, "No warehouse data cached - may need manual refresh")
	}

	return CacheReport{
		Stats:             stats,
		LastUpstreamCheck: lastCheck,
		CacheAgeHours:     age,
		Recommendations:   recommendations,
	}
}
