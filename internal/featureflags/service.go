package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCacheTTL = time.Minute

// ServiceConfig configures NewService.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	// CacheTTL bounds how long repository reads are served from memory.
	// Zero means one minute.
	CacheTTL     time.Duration
	DefaultFlags map[string]*Flag
}

// Service answers flag lookups from a short-lived in-memory cache backed by
// the repository, falling back to code defaults when the repository fails
// or has no value.
type Service struct {
	repo     Repository
	log      zerolog.Logger
	ttl      time.Duration
	defaults map[string]*Flag

	mu      sync.RWMutex
	cache   map[string]*Flag
	staleAt time.Time
}

// NewService builds a Service around cfg.Repository.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	defaults := cfg.DefaultFlags
	if defaults == nil {
		defaults = DefaultFlags()
	}

	return &Service{
		repo:     cfg.Repository,
		log:      cfg.Logger,
		ttl:      ttl,
		defaults: defaults,
		cache:    make(map[string]*Flag),
	}
}

// GetFlag resolves one flag: cache first, then the repository, then the
// code default. An unknown key resolves to nil.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.cached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.store(key, flag)
		return flag
	}
	if !errors.Is(err, ErrFlagNotFound) {
		s.log.Warn().Err(err).Str("flag", key).Msg("feature flag lookup failed")
	}

	return s.defaults[key]
}

// GetAllFlags returns the code defaults overlaid with everything the
// repository knows, refreshing the cache along the way.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	merged := make(map[string]*Flag, len(s.defaults))
	for key, flag := range s.defaults {
		merged[key] = flag
	}

	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("feature flag listing failed, serving defaults")
		return merged
	}
	for key, flag := range stored {
		merged[key] = flag
	}

	s.mu.Lock()
	s.cache = stored
	s.staleAt = time.Now().Add(s.ttl)
	s.mu.Unlock()

	return merged
}

// SetFlag persists one flag and writes it through to the cache.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	flag.UpdatedAt = time.Now()
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return err
	}
	s.store(flag.Key, flag)
	return nil
}

// SetFlags persists a batch of flags and writes them through to the cache.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}
	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()
	return nil
}

// DeleteFlag removes a flag from the repository, reverting lookups to the
// code default.
func (s *Service) DeleteFlag(ctx context.Context, key string) error {
	if err := s.repo.DeleteFlag(ctx, key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// InvalidateCache drops the cache so the next lookup hits the repository.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.staleAt = time.Time{}
}

// IsEnabled reports whether key resolves to a truthy value.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// IsDisabled is the inverse of IsEnabled.
func (s *Service) IsDisabled(ctx context.Context, key string) bool {
	return !s.IsEnabled(ctx, key)
}

// IsInsightsGeneratorEnabled reports whether recommendations should come
// from the external generator.
func (s *Service) IsInsightsGeneratorEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagInsightsGenerator)
}

// IsCatalogGapScanEnabled reports whether the gap scan should cover catalog
// locations without warehouses.
func (s *Service) IsCatalogGapScanEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCatalogGapScan)
}

func (s *Service) cached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.staleAt) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) store(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.staleAt.Before(time.Now()) {
		s.staleAt = time.Now().Add(s.ttl)
	}
}
