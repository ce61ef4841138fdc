package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Generic covers marketplace-style venues without a dedicated protocol: a
// plain {action, symbol, channels} control message and numeric JSON tickers.
type Generic struct {
	ID string
}

func (a *Generic) VenueID() string { return a.ID }

type genericControl struct {
	Action   string   `json:"action"`
	Symbol   string   `json:"symbol"`
	Channels []string `json:"channels"`
}

func (a *Generic) control(action string, syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"ticker"}
	}
	// one control message per symbol; join with newlines so the caller can
	// write a single frame per line
	msgs := make([]json.RawMessage, 0, len(syms))
	for _, s := range syms {
		b, err := json.Marshal(genericControl{Action: action, Symbol: s, Channels: channels})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, b)
	}
	if len(msgs) == 1 {
		return msgs[0], nil
	}
	return json.Marshal(msgs)
}

func (a *Generic) BuildSubscribe(syms, channels []string) ([]byte, error) {
	return a.control("subscribe", syms, channels)
}

func (a *Generic) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	return a.control("unsubscribe", syms, channels)
}

type genericTicker struct {
	Type      string   `json:"type"`
	Symbol    string   `json:"symbol"`
	Price     float64  `json:"price"`
	Bid       *float64 `json:"bid"`
	Ask       *float64 `json:"ask"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Volume    *float64 `json:"volume"`
	Change    *float64 `json:"change"`
	ChangePct *float64 `json:"change_pct"`
	Timestamp int64    `json:"timestamp"`
}

func (a *Generic) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg genericTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode %s message: %w", a.ID, err)
	}
	if msg.Type != "ticker" {
		return nil, nil
	}
	if msg.Symbol == "" {
		return nil, fmt.Errorf("%s ticker missing symbol", a.ID)
	}

	ts := time.Now().UTC()
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp).UTC()
	}

	return &models.MarketData{
		Symbol:       symbols.Canonical(a.ID, msg.Symbol),
		Venue:        a.ID,
		Timestamp:    ts,
		LastPrice:    msg.Price,
		Volume24h:    msg.Volume,
		Bid:          msg.Bid,
		Ask:          msg.Ask,
		High24h:      msg.High,
		Low24h:       msg.Low,
		Change24h:    msg.Change,
		ChangePct24h: msg.ChangePct,
	}, nil
}

func (a *Generic) HistoryURL(baseURL, symbol, interval string, limit int) string {
	return fmt.Sprintf("%s/v1/history?symbol=%s&interval=%s&limit=%d", baseURL, symbol, interval, limit)
}

type genericCandle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// ParseCandles decodes an array-of-objects history response, oldest first.
func (a *Generic) ParseCandles(body []byte) ([]models.Candle, error) {
	var rows []genericCandle
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s candles: %w", a.ID, err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Candle{
			OpenTime: time.UnixMilli(row.T).UTC(),
			Open:     row.O,
			High:     row.H,
			Low:      row.L,
			Close:    row.C,
			Volume:   row.V,
		})
	}
	return out, nil
}

func (a *Generic) CandlesReversed() bool { return false }
