package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Coinbase speaks the exchange websocket feed (type + channels envelope) and
// the products candles REST API.
type Coinbase struct{}

func (a *Coinbase) VenueID() string { return "coinbase" }

type coinbaseControl struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func (a *Coinbase) BuildSubscribe(syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"ticker"}
	}
	return json.Marshal(coinbaseControl{Type: "subscribe", ProductIDs: syms, Channels: channels})
}

func (a *Coinbase) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"ticker"}
	}
	return json.Marshal(coinbaseControl{Type: "unsubscribe", ProductIDs: syms, Channels: channels})
}

type coinbaseTicker struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Open24h   string `json:"open_24h"`
	Volume24h string `json:"volume_24h"`
	Low24h    string `json:"low_24h"`
	High24h   string `json:"high_24h"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Time      string `json:"time"`
}

func (a *Coinbase) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg coinbaseTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode coinbase message: %w", err)
	}
	if msg.Type != "ticker" {
		return nil, nil
	}

	last, err := parseFloat("price", msg.Price)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if msg.Time != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			ts = parsed.UTC()
		}
	}

	md := &models.MarketData{
		Symbol:    symbols.Canonical("coinbase", msg.ProductID),
		Venue:     "coinbase",
		Timestamp: ts,
		LastPrice: last,
		Volume24h: optFloat(msg.Volume24h),
		Bid:       optFloat(msg.BestBid),
		Ask:       optFloat(msg.BestAsk),
		High24h:   optFloat(msg.High24h),
		Low24h:    optFloat(msg.Low24h),
	}

	// the feed reports the 24h open, not the change; derive both
	if open := optFloat(msg.Open24h); open != nil && *open != 0 {
		change := last - *open
		pct := change / *open * 100
		md.Change24h = &change
		md.ChangePct24h = &pct
	}

	return md, nil
}

// the API only offers these granularities; there is no 4h bucket
var coinbaseGranularity = map[string]int{
	"1m": 60, "5m": 300, "15m": 900,
	"1h": 3600, "6h": 21600, "1d": 86400,
}

func (a *Coinbase) HistoryURL(baseURL, symbol, interval string, limit int) string {
	g, ok := coinbaseGranularity[interval]
	if !ok {
		g = 3600
	}
	// the API caps responses at 300 candles and has no limit parameter;
	// callers trim to the requested count
	return fmt.Sprintf("%s/products/%s/candles?granularity=%d", baseURL, symbol, g)
}

// ParseCandles decodes the candles response. Column order differs from most
// venues: time (s), low, high, open, close, volume; newest first.
func (a *Coinbase) ParseCandles(body []byte) ([]models.Candle, error) {
	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode coinbase candles: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("coinbase candle row %d has %d columns", i, len(row))
		}
		out = append(out, models.Candle{
			OpenTime: time.Unix(int64(row[0]), 0).UTC(),
			Low:      row[1],
			High:     row[2],
			Open:     row[3],
			Close:    row[4],
			Volume:   row[5],
		})
	}
	return out, nil
}

func (a *Coinbase) CandlesReversed() bool { return true }
