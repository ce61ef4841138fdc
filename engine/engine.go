package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tickerflow/adapter"
	appconfig "tickerflow/config"
	"tickerflow/connection"
	"tickerflow/internal/arbitrage"
	"tickerflow/internal/cache"
	"tickerflow/internal/channel"
	"tickerflow/internal/history"
	"tickerflow/internal/pubsub"
	"tickerflow/logger"
	"tickerflow/models"
	"tickerflow/venue"
)

// PredictionHook enriches a tick before it is cached and published. Hooks
// run synchronously on the tick pump, so they must be fast.
type PredictionHook func(tick *models.MarketData)

// AnomalyHook inspects a tick and reports whether it is anomalous, with a
// reason. Flagged ticks are still cached and published; an anomaly event is
// published alongside.
type AnomalyHook func(tick models.MarketData) (bool, string)

// Anomaly is the payload published on the anomaly topic.
type Anomaly struct {
	Tick   models.MarketData
	Reason string
}

// Engine wires the venue catalog, adapter registry, connection manager,
// snapshot cache, arbitrage detector and history fetcher into one realtime
// aggregation surface. All cache writes funnel through a single tick pump
// goroutine, so readers always observe complete snapshots.
type Engine struct {
	config   *appconfig.Config
	catalog  *venue.Catalog
	adapters *adapter.Registry
	channels *channel.Channels
	bus      *pubsub.Bus
	cache    *cache.Snapshot
	manager  *connection.Manager
	detector *arbitrage.Detector
	history  *history.Fetcher
	log      *logger.Log

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hookMu      sync.RWMutex
	predictions []PredictionHook
	anomalies   []AnomalyHook

	mu      sync.Mutex
	started bool
	closed  bool
}

// New assembles an engine from a config and venue catalog. The catalog is
// injected rather than global so tests can run against a reduced venue set.
func New(cfg *appconfig.Config, catalog *venue.Catalog) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("venue catalog is required")
	}

	adapters := adapter.NewRegistry(catalog)
	ch := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.TickBuffer)
	bus := pubsub.NewBus(cfg.Channels.EventBuffer)
	snap := cache.NewSnapshot(cfg.Engine.CacheMaxEntries)

	e := &Engine{
		config:   cfg,
		catalog:  catalog,
		adapters: adapters,
		channels: ch,
		bus:      bus,
		cache:    snap,
		manager:  connection.NewManager(cfg, catalog, adapters, ch, bus),
		detector: arbitrage.NewDetector(snap, bus, cfg.Engine.ArbitrageInterval.Std(), cfg.Engine.ArbitrageThreshold),
		history:  history.NewFetcher(catalog, adapters, cfg.History.Timeout.Std()),
		log:      logger.GetLogger(),
	}
	return e, nil
}

// Manager exposes the connection manager, mainly so tests can install a
// fake dialer.
func (e *Engine) Manager() *connection.Manager { return e.manager }

// Bus exposes the event bus for external subscribers.
func (e *Engine) Bus() *pubsub.Bus { return e.bus }

// Start connects all active venues and begins pumping ticks into the cache
// and scanning for arbitrage.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine is closed")
	}
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.log.WithComponent("engine").WithFields(logger.Fields{
		"venues":    len(e.catalog.All()),
		"cache_max": e.config.Engine.CacheMaxEntries,
	}).Info("starting engine")

	e.wg.Add(2)
	go e.tickPump()
	go e.rawPump()

	go e.channels.StartMetricsReporting(e.ctx)
	if err := e.detector.Start(e.ctx); err != nil {
		return fmt.Errorf("start arbitrage detector: %w", err)
	}

	if err := e.manager.Start(e.ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}
	return nil
}

// tickPump is the single writer to the snapshot cache. It applies
// prediction hooks, runs anomaly checks and publishes every tick on the
// market data topics.
func (e *Engine) tickPump() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case tick, ok := <-e.channels.Ticks:
			if !ok {
				return
			}
			e.processTick(tick)
		}
	}
}

// rawPump drains unparsed venue frames onto the raw observability topic so
// wire-level consumers can watch traffic without touching the tick path.
func (e *Engine) rawPump() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case msg, ok := <-e.channels.Raw:
			if !ok {
				return
			}
			e.bus.Publish(pubsub.TopicRawFrame, msg)
		}
	}
}

func (e *Engine) processTick(tick models.MarketData) {
	e.hookMu.RLock()
	predictions := e.predictions
	anomalies := e.anomalies
	e.hookMu.RUnlock()

	for _, hook := range predictions {
		hook(&tick)
	}

	e.cache.Put(tick)

	for _, hook := range anomalies {
		if flagged, reason := hook(tick); flagged {
			e.log.WithComponent("engine").WithFields(logger.Fields{
				"venue":  tick.Venue,
				"symbol": tick.Symbol,
				"reason": reason,
			}).Warn("anomalous tick")
			e.bus.Publish(pubsub.TopicAnomaly, Anomaly{Tick: tick, Reason: reason})
		}
	}

	e.bus.PublishMarketData(tick)
}

// RegisterPredictionHook adds a synchronous enrichment hook. Hooks run in
// registration order before the tick is cached.
func (e *Engine) RegisterPredictionHook(h PredictionHook) {
	e.hookMu.Lock()
	e.predictions = append(e.predictions, h)
	e.hookMu.Unlock()
}

// RegisterAnomalyHook adds a synchronous anomaly check, run after caching.
func (e *Engine) RegisterAnomalyHook(h AnomalyHook) {
	e.hookMu.Lock()
	e.anomalies = append(e.anomalies, h)
	e.hookMu.Unlock()
}

// SubscribeSymbol subscribes one symbol on one venue.
func (e *Engine) SubscribeSymbol(venueID, symbol string) error {
	return e.manager.Subscribe(venueID, symbol)
}

// SubscribeSymbols subscribes a batch of symbols on one venue with a single
// control message where the venue protocol allows it.
func (e *Engine) SubscribeSymbols(venueID string, symbols []string) error {
	return e.manager.Subscribe(venueID, symbols...)
}

// UnsubscribeSymbol removes one symbol subscription on one venue.
func (e *Engine) UnsubscribeSymbol(venueID, symbol string) error {
	return e.manager.Unsubscribe(venueID, symbol)
}

// UnsubscribeSymbols removes a batch of symbol subscriptions on one venue.
func (e *Engine) UnsubscribeSymbols(venueID string, symbols []string) error {
	return e.manager.Unsubscribe(venueID, symbols...)
}

// MarketData returns the cached snapshot for a venue and symbol.
func (e *Engine) MarketData(venueID, symbol string) (models.MarketData, bool) {
	return e.cache.Get(venueID, symbol)
}

// AllMarketData returns a copy of every cached snapshot keyed by
// venue:symbol.
func (e *Engine) AllMarketData() map[string]models.MarketData {
	return e.cache.GetAll()
}

// HistoricalData fetches historical candles for a venue and symbol over
// REST. Candles are returned oldest first.
func (e *Engine) HistoricalData(ctx context.Context, venueID, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = e.config.History.DefaultLimit
	}
	return e.history.Fetch(ctx, venueID, symbol, interval, limit)
}

// TopMovers returns up to limit snapshots ordered by absolute 24h percent
// change, largest first. Snapshots without a change figure are excluded.
// Ties keep cache insertion order, so results are stable across calls.
func (e *Engine) TopMovers(limit int) []models.MarketData {
	var movers []models.MarketData
	for _, md := range e.cache.Values() {
		if md.ChangePct24h == nil {
			continue
		}
		movers = append(movers, md)
	}
	sort.SliceStable(movers, func(i, j int) bool {
		return abs(*movers[i].ChangePct24h) > abs(*movers[j].ChangePct24h)
	})
	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

// VolumeLeaders returns up to limit snapshots ordered by 24h volume,
// largest first. Snapshots without volume, or with zero volume, are
// excluded.
func (e *Engine) VolumeLeaders(limit int) []models.MarketData {
	var leaders []models.MarketData
	for _, md := range e.cache.Values() {
		if md.Volume24h == nil || *md.Volume24h <= 0 {
			continue
		}
		leaders = append(leaders, md)
	}
	sort.SliceStable(leaders, func(i, j int) bool {
		return *leaders[i].Volume24h > *leaders[j].Volume24h
	})
	if limit > 0 && len(leaders) > limit {
		leaders = leaders[:limit]
	}
	return leaders
}

// ConnectedVenues lists currently connected venue ids.
func (e *Engine) ConnectedVenues() []string {
	return e.manager.ConnectedVenues()
}

// VenueStatus reports the connection status for one venue.
func (e *Engine) VenueStatus(venueID string) (models.VenueStatus, error) {
	return e.manager.Status(venueID)
}

// Subscribe attaches an event bus subscriber to the given topics.
func (e *Engine) Subscribe(topics ...string) *pubsub.Subscription {
	return e.bus.Subscribe(topics...)
}

// Close stops connections, the detector, the tick pump and the event bus.
// Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		e.manager.Close()
		// the detector's scan loop exits on context cancellation, so the
		// context must be cancelled before waiting on it
		if e.cancel != nil {
			e.cancel()
		}
		e.detector.Stop()
		e.wg.Wait()
	}
	e.bus.Close()
	e.channels.Close()

	e.log.WithComponent("engine").Info("engine closed")
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
