package coverage

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/featureflags"
	"github.com/depotradar/depotradar/internal/progress"
	"github.com/depotradar/depotradar/internal/recommend"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// DataSource provides the warehouse and request data the engine consumes.
type DataSource interface {
	Warehouses(ctx context.Context, force bool) ([]warehouse.Warehouse, error)
	TotalRequests(ctx context.Context) (int, error)
	MonthlyAverage(ctx context.Context) (int, error)
	RequestTimes(ctx context.Context) ([]time.Time, error)
	RequestCountsByLocation(ctx context.Context) (map[string]int, error)
}

// ServiceConfig holds configuration for the coverage service.
type ServiceConfig struct {
	// Source supplies warehouse and request data.
	Source DataSource

	// Catalog is the authoritative city list. Optional; without it groups
	// have no authoritative centers and the catalog gap scan is skipped.
	Catalog *catalog.Catalog

	// Cache is the shared TTL cache.
	Cache *cache.Service

	// Flags gates optional behavior. Optional.
	Flags *featureflags.Service

	// Generator produces recommendations when the insights generator flag
	// is on. Optional; the rule-based generator is the fallback.
	Generator recommend.Generator

	// Logger for service operations.
	Logger zerolog.Logger

	// Clock is the time source (defaults to the wall clock).
	Clock clockwork.Clock
}

// Service runs coverage gap analyses and derives insight reports.
type Service struct {
	source    DataSource
	catalog   *catalog.Catalog
	cache     *cache.Service
	flags     *featureflags.Service
	generator recommend.Generator
	logger    zerolog.Logger
	clock     clockwork.Clock
}

// NewService creates a new coverage service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		source:    cfg.Source,
		catalog:   cfg.Catalog,
		cache:     cfg.Cache,
		flags:     cfg.Flags,
		generator: cfg.Generator,
		logger:    cfg.Logger,
		clock:     clock,
	}
}

// Analyze runs the coverage gap analysis for the given filters and
// grouping radius. Results are cached per filter and radius variant;
// skipCache bypasses the cached copy but the fresh result is still
// stored.
func (s *Service) Analyze(ctx context.Context, filters Filters, radiusMiles float64, skipCache bool) (Analysis, error) {
	key := cacheKey(keyAnalysisPrefix, filters, radiusMiles)

	if !skipCache {
		if v, ok := s.cache.Get(key); ok {
			if analysis, ok := v.(Analysis); ok {
				s.logger.Debug().Str("key", key).Msg("analysis served from cache")
				return analysis, nil
			}
		}
		// Unfiltered reads fall back to the long-lived copy the precache
		// job maintains per radius.
		if filters.IsZero() {
			if v, ok := s.cache.Get(PrecacheKey(radiusMiles)); ok {
				if analysis, ok := v.(Analysis); ok {
					s.logger.Debug().Float64("radius_miles", radiusMiles).Msg("analysis served from precache")
					return analysis, nil
				}
			}
		}
	}

	warehouses, total, avg, err := s.gather(ctx)
	if err != nil {
		return Analysis{}, err
	}

	filtered := filters.Apply(warehouses)
	groups := BuildGroups(filtered, s.catalog, radiusMiles)

	metrics := make([]LocationMetric, 0, len(groups))
	for _, g := range groups {
		metrics = append(metrics, Score(g))
	}

	radius := radiusMiles
	if radius <= 0 {
		radius = defaultRadiusMiles
	}

	analysis := Analysis{
		Warehouses:           filtered,
		Locations:            metrics,
		AverageDailyRequests: avg,
		TotalWarehouses:      len(filtered),
		TotalRequests:        total,
		AnalysisRadius:       radius,
	}
	s.cache.Set(key, analysis, analysisTTL)

	s.logger.Info().
		Int("warehouses", len(filtered)).
		Int("locations", len(metrics)).
		Float64("radius_miles", radius).
		Msg("coverage analysis computed")

	return analysis, nil
}

// AnalyzeStream runs Analyze in the background and reports progress on
// the returned stream.
func (s *Service) AnalyzeStream(ctx context.Context, filters Filters, radiusMiles float64, skipCache bool) *progress.Stream {
	stream := progress.New()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("coverage analysis stream panicked")
				stream.Error(fmt.Sprintf("internal error: %v", r))
			}
		}()

		stream.Log("Starting coverage gap analysis...", 0)
		stream.Log("Fetching warehouse data...", 25)

		analysis, err := s.Analyze(ctx, filters, radiusMiles, skipCache)
		if err != nil {
			stream.Error(err.Error())
			return
		}

		stream.Log("Coverage gap analysis complete", 100)
		stream.Data(analysis)
	}()

	return stream
}

// gather fetches the warehouse list and request aggregates in parallel.
// The warehouse list is required; the aggregates degrade to zero so a
// requests-side failure never blocks the analysis.
func (s *Service) gather(ctx context.Context) ([]warehouse.Warehouse, int, int, error) {
	var (
		warehouses []warehouse.Warehouse
		total      int
		avg        int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws, err := s.source.Warehouses(ctx, false)
		if err != nil {
			return err
		}
		warehouses = ws
		return nil
	})
	g.Go(func() error {
		t, err := s.source.TotalRequests(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("total requests unavailable, defaulting to zero")
			return nil
		}
		total = t
		return nil
	})
	g.Go(func() error {
		a, err := s.source.MonthlyAverage(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("monthly average unavailable, defaulting to zero")
			return nil
		}
		avg = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}
	return warehouses, total, avg, nil
}

// Insights derives the demand-side report: coverage gaps, high request
// areas, request trends, and recommendations. Results are cached per
// filter set; skipCache bypasses the cached copy but the fresh result is
// still stored.
func (s *Service) Insights(ctx context.Context, filters Filters, skipCache bool) (InsightReport, error) {
	key := cacheKey(keyInsightsPrefix, filters, 0)

	if !skipCache {
		if v, ok := s.cache.Get(key); ok {
			if report, ok := v.(InsightReport); ok {
				s.logger.Debug().Str("key", key).Msg("insights served from cache")
				return report, nil
			}
		}
		if filters.IsZero() {
			if v, ok := s.cache.Get(InsightsPrecacheKey); ok {
				if report, ok := v.(InsightReport); ok {
					s.logger.Debug().Msg("insights served from precache")
					return report, nil
				}
			}
		}
	}

	warehouses, err := s.source.Warehouses(ctx, false)
	if err != nil {
		return InsightReport{}, err
	}
	filtered := filters.Apply(warehouses)
	groups := BuildGroups(filtered, s.catalog, 0)

	gaps := FindGaps(groups)
	if s.catalog != nil && s.flagEnabled(ctx, featureflags.FlagCatalogGapScan, true) {
		gaps = append(gaps, s.catalogGaps(ctx, groups, filtered)...)
		sortGaps(gaps)
	}

	areas := HighRequestAreas(groups)

	times, err := s.source.RequestTimes(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("request times unavailable, trends default to stable")
		times = nil
	}
	trends := Trends(times, s.clock.Now().UTC())

	total, err := s.source.TotalRequests(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("total requests unavailable, defaulting to zero")
		total = 0
	}

	report := InsightReport{
		CoverageGaps:     gaps,
		HighRequestAreas: areas,
		RequestTrends:    trends,
		Recommendations:  s.recommendations(ctx, gaps, areas, len(filtered), total),
	}
	s.cache.Set(key, report, insightsTTL)

	s.logger.Info().
		Int("gaps", len(gaps)).
		Int("high_request_areas", len(areas)).
		Str("trend", trends.TrendDirection).
		Msg("coverage insights computed")

	return report, nil
}

// catalogGaps runs the catalog-wide gap scan with by-location demand.
// Demand is optional; without it uncovered locations get the fixed low
// score.
func (s *Service) catalogGaps(ctx context.Context, groups []*Group, warehouses []warehouse.Warehouse) []Gap {
	demand, err := s.source.RequestCountsByLocation(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("location demand unavailable, catalog gaps get the base score")
		demand = nil
	}

	grouped := make(map[string]bool, len(groups))
	for _, g := range groups {
		grouped[g.Key] = true
	}

	return CatalogGaps(s.catalog, grouped, warehouses, demand)
}

func (s *Service) recommendations(ctx context.Context, gaps []Gap, areas []HighRequestArea, totalWarehouses, totalRequests int) []recommend.Recommendation {
	summary := recommend.Summary{
		TotalWarehouses: totalWarehouses,
		TotalRequests:   totalRequests,
		Gaps:            make([]recommend.Area, 0, len(gaps)),
		HighDemand:      make([]recommend.Area, 0, len(areas)),
	}
	for _, g := range gaps {
		summary.Gaps = append(summary.Gaps, recommend.Area{
			Key:            g.Location,
			WarehouseCount: g.WarehouseCount,
			GapScore:       g.GapScore,
		})
	}
	for _, a := range areas {
		summary.HighDemand = append(summary.HighDemand, recommend.Area{
			Key:            a.Location,
			RequestCount:   a.RequestCount,
			WarehouseCount: a.WarehouseCount,
		})
	}

	if s.generator != nil && s.flagEnabled(ctx, featureflags.FlagInsightsGenerator, false) {
		recs, err := s.generator.Generate(ctx, summary)
		if err == nil {
			return recs
		}
		s.logger.Warn().Err(err).Msg("recommendation generator failed, falling back to rules")
	}

	recs, _ := recommend.Rules{}.Generate(ctx, summary)
	return recs
}

func (s *Service) flagEnabled(ctx context.Context, key string, fallback bool) bool {
	if s.flags == nil {
		return fallback
	}
	return s.flags.IsEnabled(ctx, key)
}

// Invalidate clears all cached analyses and insight reports.
func (s *Service) Invalidate() int {
	removed := s.cache.ClearNamespace(Namespace)
	s.logger.Info().Int("removed", removed).Msg("coverage cache invalidated")
	return removed
}
