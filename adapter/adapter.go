package adapter

import (
	"fmt"

	"tickerflow/models"
	"tickerflow/venue"
)

// VenueAdapter bundles the per-venue wire knowledge: how to build control
// messages for the stream, how to normalize inbound payloads, and how to
// request and parse candle history. Adding a venue means adding one
// implementation and registering it; the connection manager and cache are
// untouched.
type VenueAdapter interface {
	VenueID() string

	// BuildSubscribe formats the venue control message subscribing the
	// given native symbols to the given channels.
	BuildSubscribe(symbols []string, channels []string) ([]byte, error)

	// BuildUnsubscribe formats the matching unsubscribe message.
	BuildUnsubscribe(symbols []string, channels []string) ([]byte, error)

	// ParseMessage normalizes one raw stream payload. It returns (nil, nil)
	// for message types that are recognized but irrelevant (heartbeats,
	// subscription acks); only malformed payloads return an error.
	ParseMessage(raw []byte) (*models.MarketData, error)

	// HistoryURL builds the venue REST URL for candle history.
	HistoryURL(baseURL, symbol, interval string, limit int) string

	// ParseCandles maps the venue REST response body to candles in the
	// venue's native ordering. Callers normalize to oldest-first.
	ParseCandles(body []byte) ([]models.Candle, error)

	// CandlesReversed reports whether the venue returns history newest
	// first, requiring a reversal.
	CandlesReversed() bool
}

// Registry resolves adapters by venue id. Built once at startup from the
// venue catalog.
type Registry struct {
	adapters map[string]VenueAdapter
}

// NewRegistry builds the adapter set for every venue in the catalog. Venues
// without a dedicated adapter fall back to the generic marketplace adapter.
func NewRegistry(catalog *venue.Catalog) *Registry {
	r := &Registry{adapters: make(map[string]VenueAdapter)}
	for _, v := range catalog.All() {
		r.adapters[v.ID] = adapterFor(v.ID)
	}
	return r
}

// Get returns the adapter for a venue id.
func (r *Registry) Get(venueID string) (VenueAdapter, error) {
	a, ok := r.adapters[venueID]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for venue %q", venueID)
	}
	return a, nil
}

func adapterFor(venueID string) VenueAdapter {
	switch venueID {
	case "binance":
		return &Binance{}
	case "bybit":
		return &Bybit{}
	case "coinbase":
		return &Coinbase{}
	case "kraken":
		return &Kraken{}
	case "kucoin":
		return &Kucoin{}
	case "okx":
		return &OKX{}
	default:
		return &Generic{ID: venueID}
	}
}
