package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Kraken speaks the v1 websocket API (event + subscription envelope) and the
// public OHLC REST API.
type Kraken struct{}

func (a *Kraken) VenueID() string { return "kraken" }

type krakenControl struct {
	Event        string             `json:"event"`
	Pair         []string           `json:"pair"`
	Subscription krakenSubscription `json:"subscription"`
}

type krakenSubscription struct {
	Name string `json:"name"`
}

func (a *Kraken) BuildSubscribe(syms, channels []string) ([]byte, error) {
	name := "ticker"
	if len(channels) > 0 {
		name = channels[0]
	}
	return json.Marshal(krakenControl{Event: "subscribe", Pair: syms, Subscription: krakenSubscription{Name: name}})
}

func (a *Kraken) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	name := "ticker"
	if len(channels) > 0 {
		name = channels[0]
	}
	return json.Marshal(krakenControl{Event: "unsubscribe", Pair: syms, Subscription: krakenSubscription{Name: name}})
}

// krakenTickerPayload is the object at index 1 of a ticker array message.
// Each field is an array: c = [last, lot volume], v/h/l/p = [today, 24h],
// a/b = [price, whole lot volume, lot volume].
type krakenTickerPayload struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Close  []string `json:"c"`
	Volume []string `json:"v"`
	High   []string `json:"h"`
	Low    []string `json:"l"`
	Open   []string `json:"o"`
}

// ParseMessage handles kraken's array-framed channel messages:
// [channelID, payload, channelName, pair]. Object-framed messages
// (heartbeats, subscription status) are ignored.
func (a *Kraken) ParseMessage(raw []byte) (*models.MarketData, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		// object-framed event message
		return nil, nil
	}
	if len(frame) < 4 {
		return nil, fmt.Errorf("kraken frame has %d elements", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "ticker" {
		return nil, nil
	}

	var pair string
	if err := json.Unmarshal(frame[3], &pair); err != nil {
		return nil, fmt.Errorf("kraken ticker pair: %w", err)
	}

	var payload krakenTickerPayload
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		return nil, fmt.Errorf("decode kraken ticker payload: %w", err)
	}
	if len(payload.Close) == 0 {
		return nil, fmt.Errorf("kraken ticker missing close field")
	}

	last, err := parseFloat("last price", payload.Close[0])
	if err != nil {
		return nil, err
	}

	md := &models.MarketData{
		Symbol:    symbols.Canonical("kraken", pair),
		Venue:     "kraken",
		Timestamp: time.Now().UTC(),
		LastPrice: last,
	}
	if len(payload.Bid) > 0 {
		md.Bid = optFloat(payload.Bid[0])
	}
	if len(payload.Ask) > 0 {
		md.Ask = optFloat(payload.Ask[0])
	}
	// index 1 of v/h/l is the trailing 24h window
	if len(payload.Volume) > 1 {
		md.Volume24h = optFloat(payload.Volume[1])
	}
	if len(payload.High) > 1 {
		md.High24h = optFloat(payload.High[1])
	}
	if len(payload.Low) > 1 {
		md.Low24h = optFloat(payload.Low[1])
	}
	if len(payload.Open) > 1 {
		if open := optFloat(payload.Open[1]); open != nil && *open != 0 {
			change := last - *open
			pct := change / *open * 100
			md.Change24h = &change
			md.ChangePct24h = &pct
		}
	}

	return md, nil
}

var krakenIntervals = map[string]int{
	"1m": 1, "5m": 5, "15m": 15,
	"1h": 60, "4h": 240, "1d": 1440,
}

func (a *Kraken) HistoryURL(baseURL, symbol, interval string, limit int) string {
	iv, ok := krakenIntervals[interval]
	if !ok {
		iv = 60
	}
	return fmt.Sprintf("%s/0/public/OHLC?pair=%s&interval=%d", baseURL, symbol, iv)
}

type krakenOHLCResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// ParseCandles decodes the OHLC response. The result maps the resolved pair
// name to rows of [time (s), open, high, low, close, vwap, volume, count],
// oldest first.
func (a *Kraken) ParseCandles(body []byte) ([]models.Candle, error) {
	var resp krakenOHLCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode kraken OHLC: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken OHLC error: %v", resp.Error)
	}

	var rows [][]json.RawMessage
	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode kraken OHLC rows: %w", err)
		}
		break
	}

	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("kraken OHLC row %d has %d columns", i, len(row))
		}
		var ts float64
		if err := json.Unmarshal(row[0], &ts); err != nil {
			return nil, fmt.Errorf("kraken OHLC row %d time: %w", i, err)
		}
		var o, h, l, c, v string
		for j, dst := range []*string{&o, &h, &l, &c} {
			if err := json.Unmarshal(row[j+1], dst); err != nil {
				return nil, fmt.Errorf("kraken OHLC row %d column %d: %w", i, j+1, err)
			}
		}
		if err := json.Unmarshal(row[6], &v); err != nil {
			return nil, fmt.Errorf("kraken OHLC row %d volume: %w", i, err)
		}

		candle := models.Candle{OpenTime: time.Unix(int64(ts), 0).UTC()}
		var err error
		if candle.Open, err = parseFloat("open", o); err != nil {
			return nil, err
		}
		if candle.High, err = parseFloat("high", h); err != nil {
			return nil, err
		}
		if candle.Low, err = parseFloat("low", l); err != nil {
			return nil, err
		}
		if candle.Close, err = parseFloat("close", c); err != nil {
			return nil, err
		}
		if candle.Volume, err = parseFloat("volume", v); err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

func (a *Kraken) CandlesReversed() bool { return false }
