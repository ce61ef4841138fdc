package cache

import (
	"sync"
	"time"

	"tickerflow/logger"
	"tickerflow/models"
)

// DefaultMaxEntries bounds the snapshot cache when no capacity is
// configured.
const DefaultMaxEntries = 10000

// Snapshot is a bounded keyed store of the latest MarketData per
// (venue, symbol). When capacity is exceeded the single oldest-inserted
// entry is evicted, regardless of how recently it was read or overwritten.
// Safe for concurrent use.
type Snapshot struct {
	mu         sync.RWMutex
	entries    map[string]models.MarketData
	insertions []string // key insertion order, oldest first
	max        int
	evictions  int64
	log        *logger.Log
}

func NewSnapshot(maxEntries int) *Snapshot {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Snapshot{
		entries: make(map[string]models.MarketData),
		max:     maxEntries,
		log:     logger.GetLogger(),
	}
}

// Put stores data under its venue:symbol key, stamping CachedAt for
// freshness introspection. Overwriting an existing key keeps its original
// insertion position.
func (s *Snapshot) Put(data models.MarketData) {
	key := data.Key()
	data.CachedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		s.insertions = append(s.insertions, key)
	}
	s.entries[key] = data

	if len(s.entries) > s.max {
		oldest := s.insertions[0]
		s.insertions = s.insertions[1:]
		delete(s.entries, oldest)
		s.evictions++
		s.log.WithComponent("snapshot_cache").WithFields(logger.Fields{
			"evicted": oldest,
			"size":    len(s.entries),
		}).Debug("evicted oldest cache entry")
	}
}

// Get returns the latest snapshot for a venue and symbol.
func (s *Snapshot) Get(venue, symbol string) (models.MarketData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.entries[models.Key(venue, symbol)]
	return d, ok
}

// GetAll returns a defensive copy of the full map.
func (s *Snapshot) GetAll() map[string]models.MarketData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.MarketData, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Values returns a copy of all cached snapshots without their keys.
func (s *Snapshot) Values() []models.MarketData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MarketData, 0, len(s.entries))
	for _, k := range s.insertions {
		out = append(out, s.entries[k])
	}
	return out
}

// Symbols returns the cached venue:symbol keys in insertion order.
func (s *Snapshot) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.insertions...)
}

// Len reports the current entry count.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Evictions reports how many entries have been evicted since construction.
func (s *Snapshot) Evictions() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evictions
}
