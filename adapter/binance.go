package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Binance speaks the combined-stream websocket protocol and the spot klines
// REST API. Control messages may be built from concurrent subscribers, so
// the request id counter is atomic.
type Binance struct {
	reqID atomic.Int64
}

func (a *Binance) VenueID() string { return "binance" }

type binanceControl struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func (a *Binance) control(method string, syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"ticker"}
	}
	params := make([]string, 0, len(syms)*len(channels))
	for _, s := range syms {
		for _, ch := range channels {
			params = append(params, fmt.Sprintf("%s@%s", strings.ToLower(s), ch))
		}
	}
	return json.Marshal(binanceControl{Method: method, Params: params, ID: a.reqID.Add(1)})
}

func (a *Binance) BuildSubscribe(syms, channels []string) ([]byte, error) {
	return a.control("SUBSCRIBE", syms, channels)
}

func (a *Binance) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	return a.control("UNSUBSCRIBE", syms, channels)
}

// binanceTicker is the 24hr rolling ticker stream payload.
type binanceTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Change    string `json:"p"`
	ChangePct string `json:"P"`
	Last      string `json:"c"`
	Bid       string `json:"b"`
	Ask       string `json:"a"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}

func (a *Binance) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg binanceTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode binance message: %w", err)
	}
	if msg.EventType != "24hrTicker" {
		return nil, nil
	}

	last, err := parseFloat("last price", msg.Last)
	if err != nil {
		return nil, err
	}

	return &models.MarketData{
		Symbol:       symbols.Canonical("binance", msg.Symbol),
		Venue:        "binance",
		Timestamp:    time.UnixMilli(msg.EventTime).UTC(),
		LastPrice:    last,
		Volume24h:    optFloat(msg.Volume),
		Bid:          optFloat(msg.Bid),
		Ask:          optFloat(msg.Ask),
		High24h:      optFloat(msg.High),
		Low24h:       optFloat(msg.Low),
		Change24h:    optFloat(msg.Change),
		ChangePct24h: optFloat(msg.ChangePct),
	}, nil
}

var binanceIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m",
	"1h": "1h", "4h": "4h", "1d": "1d",
}

func (a *Binance) HistoryURL(baseURL, symbol, interval string, limit int) string {
	iv, ok := binanceIntervals[interval]
	if !ok {
		iv = "1h"
	}
	return fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", baseURL, symbol, iv, limit)
}

// ParseCandles decodes the klines array-of-arrays response. Column order:
// open time (ms), open, high, low, close, volume, close time, ...
func (a *Binance) ParseCandles(body []byte) ([]models.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode binance klines: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("binance kline row %d has %d columns", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("binance kline row %d open time: %w", i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			var s string
			if err := json.Unmarshal(row[j], &s); err != nil {
				return nil, fmt.Errorf("binance kline row %d column %d: %w", i, j, err)
			}
			v, err := parseFloat("kline value", s)
			if err != nil {
				return nil, err
			}
			vals[j-1] = v
		}
		out = append(out, models.Candle{
			OpenTime: time.UnixMilli(openTime).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return out, nil
}

func (a *Binance) CandlesReversed() bool { return false }
