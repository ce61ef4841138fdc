package engine

import (
	"context"
	"testing"
	"time"

	appconfig "tickerflow/config"
	"tickerflow/internal/pubsub"
	"tickerflow/models"
	"tickerflow/venue"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(appconfig.Default(), venue.DefaultCatalog())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func tick(venueID, symbol string, price float64) models.MarketData {
	return models.MarketData{Venue: venueID, Symbol: symbol, LastPrice: price}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, venue.DefaultCatalog()); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := New(appconfig.Default(), nil); err == nil {
		t.Error("nil catalog should fail")
	}
}

func TestProcessTickCachesAndPublishes(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	sub := e.Subscribe(pubsub.TopicMarketData)
	e.processTick(tick("binance", "BTCUSDT", 40000))

	md, ok := e.MarketData("binance", "BTCUSDT")
	if !ok {
		t.Fatal("tick should be cached")
	}
	if md.LastPrice != 40000 {
		t.Errorf("unexpected price %v", md.LastPrice)
	}

	if len(sub.C) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(sub.C))
	}

	all := e.AllMarketData()
	if _, ok := all[models.Key("binance", "BTCUSDT")]; !ok {
		t.Error("AllMarketData should include the tick")
	}
}

func TestPredictionHookRunsBeforeCaching(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	e.RegisterPredictionHook(func(md *models.MarketData) {
		md.ChangePct24h = models.Float64Ptr(9.9)
	})
	e.processTick(tick("binance", "BTCUSDT", 40000))

	md, _ := e.MarketData("binance", "BTCUSDT")
	if md.ChangePct24h == nil || *md.ChangePct24h != 9.9 {
		t.Error("hook enrichment should be visible in the cache")
	}
}

func TestAnomalyHookPublishes(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	e.RegisterAnomalyHook(func(md models.MarketData) (bool, string) {
		return md.LastPrice <= 0, "non-positive price"
	})

	sub := e.Subscribe(pubsub.TopicAnomaly)
	e.processTick(tick("binance", "BTCUSDT", -1))
	e.processTick(tick("binance", "ETHUSDT", 2500))

	if len(sub.C) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(sub.C))
	}
	ev := <-sub.C
	anomaly, ok := ev.Payload.(Anomaly)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Payload)
	}
	if anomaly.Reason != "non-positive price" || anomaly.Tick.Symbol != "BTCUSDT" {
		t.Errorf("unexpected anomaly %+v", anomaly)
	}

	// anomalous ticks are still cached
	if _, ok := e.MarketData("binance", "BTCUSDT"); !ok {
		t.Error("anomalous tick should still be cached")
	}
}

func withPct(md models.MarketData, pct float64) models.MarketData {
	md.ChangePct24h = &pct
	return md
}

func withVolume(md models.MarketData, vol float64) models.MarketData {
	md.Volume24h = &vol
	return md
}

func TestTopMovers(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	e.processTick(withPct(tick("binance", "AAA", 1), 2.0))
	e.processTick(withPct(tick("binance", "BBB", 1), -5.0))
	e.processTick(withPct(tick("binance", "CCC", 1), 3.0))
	e.processTick(tick("binance", "DDD", 1)) // no change figure

	movers := e.TopMovers(2)
	if len(movers) != 2 {
		t.Fatalf("expected 2 movers, got %d", len(movers))
	}
	// ordered by absolute change, so the -5% symbol leads
	if movers[0].Symbol != "BBB" || movers[1].Symbol != "CCC" {
		t.Errorf("unexpected order %s, %s", movers[0].Symbol, movers[1].Symbol)
	}
}

func TestTopMoversStableTies(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	e.processTick(withPct(tick("binance", "AAA", 1), 1.0))
	e.processTick(withPct(tick("kraken", "BBB", 1), 1.0))
	e.processTick(withPct(tick("okx", "CCC", 1), 1.0))

	movers := e.TopMovers(0)
	if len(movers) != 3 {
		t.Fatalf("expected 3 movers, got %d", len(movers))
	}
	// ties keep insertion order
	if movers[0].Symbol != "AAA" || movers[1].Symbol != "BBB" || movers[2].Symbol != "CCC" {
		t.Errorf("tie order not stable: %s, %s, %s", movers[0].Symbol, movers[1].Symbol, movers[2].Symbol)
	}
}

func TestVolumeLeaders(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	e.processTick(withVolume(tick("binance", "AAA", 1), 100))
	e.processTick(withVolume(tick("binance", "BBB", 1), 300))
	e.processTick(withVolume(tick("binance", "CCC", 1), 0)) // excluded
	e.processTick(tick("binance", "DDD", 1))                // excluded

	leaders := e.VolumeLeaders(10)
	if len(leaders) != 2 {
		t.Fatalf("expected 2 leaders, got %d", len(leaders))
	}
	if leaders[0].Symbol != "BBB" || leaders[1].Symbol != "AAA" {
		t.Errorf("unexpected order %s, %s", leaders[0].Symbol, leaders[1].Symbol)
	}
}

func TestVenueStatusUnknownVenue(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	if _, err := e.VenueStatus("nope"); err == nil {
		t.Error("unknown venue should fail")
	}

	status, err := e.VenueStatus("binance")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != models.ConnDisconnected {
		t.Errorf("never-connected venue should report disconnected, got %s", status.State)
	}
}

func TestCloseIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.Close()
	e.Close()
}

// newStartedEngine runs against a venue with no streaming capability so the
// full pump and detector lifecycle starts without any network dials.
func newStartedEngine(t *testing.T) *Engine {
	t.Helper()
	catalog, err := venue.NewCatalog([]*venue.Config{{
		ID:           "quietmart",
		Name:         "Quiet Marketplace",
		AssetClasses: []venue.AssetClass{venue.AssetCrypto},
		Symbols:      []string{"AAA-USD"},
		Status:       venue.StatusActive,
	}})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	e, err := New(appconfig.Default(), catalog)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	return e
}

func TestCloseReturnsWithLiveParentContext(t *testing.T) {
	e := newStartedEngine(t)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return on a started engine")
	}
}

func TestRawFramesReachTheBus(t *testing.T) {
	e := newStartedEngine(t)
	defer e.Close()

	sub := e.Subscribe(pubsub.TopicRawFrame)
	if !e.channels.SendRaw(context.Background(), models.RawMessage{Venue: "quietmart", Data: []byte(`{"hb":1}`)}) {
		t.Fatal("raw send should succeed on an empty buffer")
	}

	select {
	case ev := <-sub.C:
		msg, ok := ev.Payload.(models.RawMessage)
		if !ok || msg.Venue != "quietmart" {
			t.Fatalf("unexpected raw event payload %+v", ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("raw frame was not published")
	}
}
