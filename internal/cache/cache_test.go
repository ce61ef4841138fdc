package cache

import (
	"fmt"
	"testing"

	"tickerflow/models"
)

func tick(venue, symbol string, price float64) models.MarketData {
	return models.MarketData{Venue: venue, Symbol: symbol, LastPrice: price}
}

func TestPutAndGet(t *testing.T) {
	s := NewSnapshot(10)
	s.Put(tick("binance", "BTCUSDT", 40000))

	got, ok := s.Get("binance", "BTCUSDT")
	if !ok {
		t.Fatal("expected cached entry")
	}
	if got.LastPrice != 40000 {
		t.Errorf("unexpected price %v", got.LastPrice)
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt should be stamped on insert")
	}
}

func TestOverwriteKeepsSize(t *testing.T) {
	s := NewSnapshot(10)
	s.Put(tick("binance", "BTCUSDT", 40000))
	s.Put(tick("binance", "BTCUSDT", 40100))

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	got, _ := s.Get("binance", "BTCUSDT")
	if got.LastPrice != 40100 {
		t.Errorf("overwrite should win, got %v", got.LastPrice)
	}
}

func TestEvictsOldestInserted(t *testing.T) {
	s := NewSnapshot(3)
	s.Put(tick("binance", "A", 1))
	s.Put(tick("binance", "B", 2))
	s.Put(tick("binance", "C", 3))

	// touching the oldest entry must not protect it from eviction
	s.Put(tick("binance", "A", 10))

	s.Put(tick("binance", "D", 4))

	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
	if _, ok := s.Get("binance", "A"); ok {
		t.Error("oldest-inserted entry should have been evicted")
	}
	if _, ok := s.Get("binance", "D"); !ok {
		t.Error("newest entry should be present")
	}
	if s.Evictions() != 1 {
		t.Errorf("expected 1 eviction, got %d", s.Evictions())
	}
}

func TestEvictionAtDefaultCapacity(t *testing.T) {
	s := NewSnapshot(0)
	for i := 0; i <= DefaultMaxEntries; i++ {
		s.Put(tick("binance", fmt.Sprintf("SYM%05d", i), float64(i)))
	}

	if s.Len() != DefaultMaxEntries {
		t.Fatalf("expected %d entries, got %d", DefaultMaxEntries, s.Len())
	}
	if _, ok := s.Get("binance", "SYM00000"); ok {
		t.Error("first inserted entry should have been evicted")
	}
}

func TestValuesInsertionOrder(t *testing.T) {
	s := NewSnapshot(10)
	s.Put(tick("binance", "A", 1))
	s.Put(tick("kraken", "B", 2))
	s.Put(tick("binance", "A", 3)) // overwrite keeps position

	vals := s.Values()
	if len(vals) != 2 {
		t.Fatalf("expected 2 values, got %d", len(vals))
	}
	if vals[0].Symbol != "A" || vals[0].LastPrice != 3 {
		t.Errorf("unexpected first value %+v", vals[0])
	}
	if vals[1].Symbol != "B" {
		t.Errorf("unexpected second value %+v", vals[1])
	}
}

func TestSymbols(t *testing.T) {
	s := NewSnapshot(10)
	s.Put(tick("binance", "BTCUSDT", 1))
	s.Put(tick("kraken", "ETHUSD", 2))

	keys := s.Symbols()
	if len(keys) != 2 || keys[0] != "binance:BTCUSDT" || keys[1] != "kraken:ETHUSD" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestGetAllIsACopy(t *testing.T) {
	s := NewSnapshot(10)
	s.Put(tick("binance", "A", 1))

	all := s.GetAll()
	delete(all, models.Key("binance", "A"))

	if _, ok := s.Get("binance", "A"); !ok {
		t.Error("mutating the returned map must not affect the cache")
	}
}
