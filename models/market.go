package models

import (
	"fmt"
	"time"
)

// RawMessage represents a raw payload received from a venue stream before
// normalization.
type RawMessage struct {
	Venue     string
	Data      []byte
	Timestamp time.Time
}

// MarketData is the canonical quote snapshot, independent of the source venue
// wire format. Optional fields are pointers so that consumers can distinguish
// "not reported by this venue" from a literal zero.
type MarketData struct {
	Symbol    string    `json:"symbol"`
	Venue     string    `json:"venue"`
	Timestamp time.Time `json:"timestamp"`
	LastPrice float64   `json:"last_price"`

	Volume24h    *float64 `json:"volume_24h,omitempty"`
	Bid          *float64 `json:"bid,omitempty"`
	Ask          *float64 `json:"ask,omitempty"`
	High24h      *float64 `json:"high_24h,omitempty"`
	Low24h       *float64 `json:"low_24h,omitempty"`
	Change24h    *float64 `json:"change_24h,omitempty"`
	ChangePct24h *float64 `json:"change_pct_24h,omitempty"`

	// CachedAt is stamped by the snapshot cache on insert for freshness
	// introspection. It is zero on data flowing through the live pipeline.
	CachedAt time.Time `json:"cached_at,omitempty"`
}

// Key returns the cache identity of this snapshot.
func (m *MarketData) Key() string {
	return Key(m.Venue, m.Symbol)
}

// Key builds the venue:symbol identity used by the snapshot cache.
func Key(venue, symbol string) string {
	return fmt.Sprintf("%s:%s", venue, symbol)
}

// BookLevel is a single price level of an order book.
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook holds top-of-book depth for one symbol on one venue. Depth is
// venue dependent and may be partial.
type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Venue     string      `json:"venue"`
	Timestamp time.Time   `json:"timestamp"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
}

// TradeSide is the taker side of an executed trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade represents one executed trade event. Transient, not retained.
type Trade struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Venue     string    `json:"venue"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      TradeSide `json:"side"`
}

// Candle is one OHLCV period. Sequences returned by the historical fetcher
// are ordered oldest to newest.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// ArbitrageOpportunity reports a cross-venue price discrepancy for one
// symbol. Computed fresh on every detector pass, never persisted.
type ArbitrageOpportunity struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	SpreadPct  float64   `json:"spread_pct"`
	BuyVenue   string    `json:"buy_venue"`
	BuyPrice   float64   `json:"buy_price"`
	SellVenue  string    `json:"sell_venue"`
	SellPrice  float64   `json:"sell_price"`
	DetectedAt time.Time `json:"detected_at"`
}

// Float64Ptr is a convenience helper for populating optional MarketData
// fields.
func Float64Ptr(v float64) *float64 { return &v }
