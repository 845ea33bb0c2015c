// Package cache provides a process-wide TTL key/value store with
// namespace-based bulk invalidation.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the cache service.
type ServiceConfig struct {
	// Logger for cache operations.
	Logger zerolog.Logger

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock

	// DefaultTTL applies when Set is called with a non-positive TTL
	// (default: 1 hour).
	DefaultTTL time.Duration
}

// Service is a concurrency-safe in-memory cache with per-entry expiration.
// Entries are bounded only by TTL and explicit invalidation; there is no
// size-based eviction and no background sweep. Expired entries are removed
// lazily on read.
//
// Construct one Service per process and pass it to the components that need
// it. Stored values are owned by the cache; callers replace a value with Set
// rather than mutating it in place.
type Service struct {
	logger     zerolog.Logger
	clock      clockwork.Clock
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     any
	expiresAt time.Time
	createdAt time.Time
}

// Stats describes the cache contents at a point in time.
type Stats struct {
	Total      int            `json:"total_entries"`
	Active     int            `json:"active_entries"`
	Expired    int            `json:"expired_entries"`
	Namespaces map[string]int `json:"namespaces,omitempty"`
}

// NewService creates a new cache service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	defaultTTL := cfg.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = time.Hour
	}

	return &Service{
		logger:     cfg.Logger,
		clock:      clock,
		defaultTTL: defaultTTL,
		entries:    make(map[string]entry),
	}
}

// Get returns the value stored under key. The second return value is false
// when the key is absent or its entry has expired; an expired entry is
// removed as a side effect.
func (s *Service) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.clock.Now().Before(e.expiresAt) {
		return e.value, true
	}

	// Expired: upgrade to the write lock and re-check, another goroutine
	// may have replaced the entry while we waited.
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
	}
	return nil, false
}

// Set stores value under key for ttl. A non-positive ttl falls back to the
// configured default.
func (s *Service) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: now.Add(ttl),
		createdAt: now,
	}
	s.mu.Unlock()
}

// Delete removes a single entry. Absent keys are a no-op.
func (s *Service) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// ClearNamespace deletes every entry whose key starts with one of the given
// prefixes and returns the number of entries removed. Keys outside the given
// namespaces are untouched.
func (s *Service) ClearNamespace(prefixes ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				delete(s.entries, key)
				removed++
				break
			}
		}
	}

	if removed > 0 {
		s.logger.Info().
			Strs("namespaces", prefixes).
			Int("removed", removed).
			Msg("cache namespaces cleared")
	}
	return removed
}

// Stats reports entry counts, plus a per-namespace breakdown for the given
// prefixes. Expired-but-unswept entries count as expired.
func (s *Service) Stats(prefixes ...string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	stats := Stats{Total: len(s.entries)}
	if len(prefixes) > 0 {
		stats.Namespaces = make(map[string]int, len(prefixes))
		for _, prefix := range prefixes {
			stats.Namespaces[prefix] = 0
		}
	}

	for key, e := range s.entries {
		if now.Before(e.expiresAt) {
			stats.Active++
		} else {
			stats.Expired++
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				stats.Namespaces[prefix]++
				break
			}
		}
	}
	return stats
}
