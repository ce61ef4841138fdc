package arbitrage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tickerflow/internal/cache"
	"tickerflow/internal/pubsub"
	"tickerflow/logger"
	"tickerflow/models"
)

// Detector periodically scans the snapshot cache for the same symbol priced
// on two or more venues and reports spreads above the configured threshold.
type Detector struct {
	cache     *cache.Snapshot
	bus       *pubsub.Bus
	interval  time.Duration
	threshold float64

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	log     *logger.Log
}

func NewDetector(c *cache.Snapshot, bus *pubsub.Bus, interval time.Duration, thresholdPct float64) *Detector {
	if interval <= 0 {
		interval = time.Second
	}
	if thresholdPct <= 0 {
		thresholdPct = 0.5
	}
	return &Detector{
		cache:     c,
		bus:       bus,
		interval:  interval,
		threshold: thresholdPct,
		log:       logger.GetLogger(),
	}
}

// Start launches the periodic scan. The scan stops when ctx is cancelled.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("detector already running")
	}
	d.running = true
	d.mu.Unlock()

	d.log.WithComponent("arbitrage_detector").WithFields(logger.Fields{
		"interval":      d.interval,
		"threshold_pct": d.threshold,
	}).Info("starting arbitrage detector")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				opps := d.Scan()
				if len(opps) > 0 {
					d.log.LogMetric("arbitrage_detector", "opportunities_found", len(opps), "counter", nil)
				}
				for _, opp := range opps {
					d.bus.Publish(pubsub.TopicArbitrage, opp)
					d.log.WithComponent("arbitrage_detector").WithFields(logger.Fields{
						"symbol":     opp.Symbol,
						"spread_pct": opp.SpreadPct,
						"buy_venue":  opp.BuyVenue,
						"sell_venue": opp.SellVenue,
					}).Info("arbitrage opportunity detected")
				}
			}
		}
	}()
	return nil
}

// Stop waits for the scan loop to exit after context cancellation.
func (d *Detector) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.wg.Wait()
}

// Scan runs one detection pass over a point-in-time copy of the cache.
// Symbols present on fewer than two venues produce nothing. When several
// venues share the extreme price the lexicographically lowest venue id wins,
// keeping results reproducible.
func (d *Detector) Scan() []models.ArbitrageOpportunity {
	snapshot := d.cache.GetAll()

	type quote struct {
		venue string
		price float64
	}
	bySymbol := make(map[string][]quote)
	for _, md := range snapshot {
		bySymbol[md.Symbol] = append(bySymbol[md.Symbol], quote{venue: md.Venue, price: md.LastPrice})
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var out []models.ArbitrageOpportunity
	for _, sym := range symbols {
		quotes := bySymbol[sym]
		if len(quotes) < 2 {
			continue
		}
		// stable venue order makes the tie-break deterministic
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].venue < quotes[j].venue })

		low, high := quotes[0], quotes[0]
		for _, q := range quotes[1:] {
			if q.price < low.price {
				low = q
			}
			if q.price > high.price {
				high = q
			}
		}
		if low.price <= 0 {
			continue
		}

		spreadPct := (high.price - low.price) / low.price * 100
		if spreadPct <= d.threshold {
			continue
		}

		out = append(out, models.ArbitrageOpportunity{
			ID:         uuid.NewString(),
			Symbol:     sym,
			SpreadPct:  spreadPct,
			BuyVenue:   low.venue,
			BuyPrice:   low.price,
			SellVenue:  high.venue,
			SellPrice:  high.price,
			DetectedAt: time.Now().UTC(),
		})
	}
	return out
}
