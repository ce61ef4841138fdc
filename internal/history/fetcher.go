package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"tickerflow/adapter"
	"tickerflow/logger"
	"tickerflow/models"
	"tickerflow/venue"
)

// Fetcher retrieves OHLCV candle history over REST, one request shape per
// venue. Requests are rate limited per venue from the catalog's published
// tiers.
type Fetcher struct {
	catalog  *venue.Catalog
	adapters *adapter.Registry
	client   *http.Client
	binance  *binance.Client
	limiters map[string]*rate.Limiter
	log      *logger.Log
}

// NewFetcher builds a fetcher with a shared HTTP client. Binance candles go
// through the exchange SDK, which shares the same transport; every other
// venue uses the generic URL-plus-parser path.
func NewFetcher(catalog *venue.Catalog, adapters *adapter.Registry, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}

	bn := binance.NewClient("", "")
	bn.HTTPClient = httpClient
	if v, ok := catalog.Get("binance"); ok && v.RESTBaseURL != "" {
		bn.BaseURL = v.RESTBaseURL
	}

	f := &Fetcher{
		catalog:  catalog,
		adapters: adapters,
		client:   httpClient,
		binance:  bn,
		limiters: make(map[string]*rate.Limiter),
		log:      logger.GetLogger(),
	}

	for _, v := range catalog.All() {
		f.limiters[v.ID] = limiterFor(v)
	}
	return f
}

// limiterFor derives a per-venue limiter from the most restrictive public
// rate tier, halved to leave headroom for other consumers of the venue API.
func limiterFor(v *venue.Config) *rate.Limiter {
	rpm := 600
	for _, tier := range v.Auth.RateLimits {
		if tier.RequestsPerMinute > 0 && tier.RequestsPerMinute < rpm {
			rpm = tier.RequestsPerMinute
		}
	}
	perSecond := float64(rpm) / 60 / 2
	if perSecond <= 0 {
		perSecond = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), 5)
}

// Fetch returns up to limit candles for the symbol on the venue, ordered
// oldest to newest. An unregistered venue id or a venue without historical
// data support is a caller error, not an empty result.
func (f *Fetcher) Fetch(ctx context.Context, venueID, symbol, interval string, limit int) ([]models.Candle, error) {
	v, ok := f.catalog.Get(venueID)
	if !ok {
		return nil, fmt.Errorf("unknown venue %q", venueID)
	}
	if !v.Capabilities.HistoricalData {
		return nil, fmt.Errorf("venue %q does not support historical data", venueID)
	}
	if limit <= 0 {
		limit = 100
	}

	ad, err := f.adapters.Get(venueID)
	if err != nil {
		return nil, err
	}

	if lim := f.limiters[venueID]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait for %s: %w", venueID, err)
		}
	}

	start := time.Now()

	var candles []models.Candle
	if venueID == "binance" {
		candles, err = f.binanceKlines(ctx, symbol, interval, limit)
	} else {
		candles, err = f.fetchREST(ctx, ad, v, symbol, interval, limit)
	}
	if err != nil {
		return nil, err
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	logger.LogPerformanceEntry(
		f.log.WithComponent("history_fetcher"),
		"history_fetcher", "history_fetch", time.Since(start),
		logger.Fields{"venue": venueID, "symbol": symbol, "candles": len(candles)},
	)
	logger.LogDataFlowEntry(f.log.WithComponent("history_fetcher"), venueID, "history_fetcher", len(candles), "candles")

	return candles, nil
}

// fetchREST is the generic path: the adapter builds the venue URL and maps
// the response body to candles.
func (f *Fetcher) fetchREST(ctx context.Context, ad adapter.VenueAdapter, v *venue.Config, symbol, interval string, limit int) ([]models.Candle, error) {
	reqURL := ad.HistoryURL(v.RESTBaseURL, symbol, interval, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("User-Agent", "tickerflow/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request for %s %s: %w", v.ID, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request for %s %s: HTTP %s", v.ID, symbol, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read history response: %w", err)
	}
	logger.IncrementHistoryRead(len(body))

	candles, err := ad.ParseCandles(body)
	if err != nil {
		return nil, err
	}
	if ad.CandlesReversed() {
		reverse(candles)
	}
	return candles, nil
}

// binanceKlines fetches candles through the exchange SDK, which owns the
// klines endpoint shape, request signing and decoding. Results arrive
// oldest first already.
func (f *Fetcher) binanceKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	klines, err := f.binance.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("history request for binance %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for i, k := range klines {
		vals := make([]float64, 5)
		for j, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("binance kline %d: %w", i, err)
			}
			vals[j] = v
		}
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return candles, nil
}

func reverse(c []models.Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}
