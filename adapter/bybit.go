package adapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Bybit speaks the v5 public websocket (op + args envelope, topic strings)
// and the v5 market kline REST API.
type Bybit struct{}

func (a *Bybit) VenueID() string { return "bybit" }

type bybitControl struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func (a *Bybit) control(op string, syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"tickers"}
	}
	args := make([]string, 0, len(syms)*len(channels))
	for _, ch := range channels {
		for _, s := range syms {
			args = append(args, fmt.Sprintf("%s.%s", ch, s))
		}
	}
	return json.Marshal(bybitControl{Op: op, Args: args})
}

func (a *Bybit) BuildSubscribe(syms, channels []string) ([]byte, error) {
	return a.control("subscribe", syms, channels)
}

func (a *Bybit) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	return a.control("unsubscribe", syms, channels)
}

type bybitTicker struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	TS    int64  `json:"ts"`
	Data  struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		HighPrice24h string `json:"highPrice24h"`
		LowPrice24h  string `json:"lowPrice24h"`
		PrevPrice24h string `json:"prevPrice24h"`
		Volume24h    string `json:"volume24h"`
		Price24hPcnt string `json:"price24hPcnt"`
		Bid1Price    string `json:"bid1Price"`
		Ask1Price    string `json:"ask1Price"`
	} `json:"data"`
}

func (a *Bybit) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg bybitTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode bybit message: %w", err)
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") {
		return nil, nil
	}

	last, err := parseFloat("last price", msg.Data.LastPrice)
	if err != nil {
		return nil, err
	}

	md := &models.MarketData{
		Symbol:    symbols.Canonical("bybit", msg.Data.Symbol),
		Venue:     "bybit",
		Timestamp: time.UnixMilli(msg.TS).UTC(),
		LastPrice: last,
		Volume24h: optFloat(msg.Data.Volume24h),
		Bid:       optFloat(msg.Data.Bid1Price),
		Ask:       optFloat(msg.Data.Ask1Price),
		High24h:   optFloat(msg.Data.HighPrice24h),
		Low24h:    optFloat(msg.Data.LowPrice24h),
	}
	// price24hPcnt is a ratio, e.g. "0.0045" for +0.45%
	if ratio := optFloat(msg.Data.Price24hPcnt); ratio != nil {
		pct := *ratio * 100
		md.ChangePct24h = &pct
	}
	if prev := optFloat(msg.Data.PrevPrice24h); prev != nil {
		change := last - *prev
		md.Change24h = &change
	}
	return md, nil
}

var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15",
	"1h": "60", "4h": "240", "1d": "D",
}

func (a *Bybit) HistoryURL(baseURL, symbol, interval string, limit int) string {
	iv, ok := bybitIntervals[interval]
	if !ok {
		iv = "60"
	}
	return fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d", baseURL, symbol, iv, limit)
}

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

// ParseCandles decodes the kline response: rows of
// [startTime (ms), open, high, low, close, volume, turnover], newest first.
func (a *Bybit) ParseCandles(body []byte) ([]models.Candle, error) {
	var resp bybitKlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode bybit kline: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline error %d: %s", resp.RetCode, resp.RetMsg)
	}

	out := make([]models.Candle, 0, len(resp.Result.List))
	for i, row := range resp.Result.List {
		if len(row) < 6 {
			return nil, fmt.Errorf("bybit kline row %d has %d columns", i, len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit kline row %d timestamp: %w", i, err)
		}
		candle := models.Candle{OpenTime: time.UnixMilli(ms).UTC()}
		if candle.Open, err = parseFloat("open", row[1]); err != nil {
			return nil, err
		}
		if candle.High, err = parseFloat("high", row[2]); err != nil {
			return nil, err
		}
		if candle.Low, err = parseFloat("low", row[3]); err != nil {
			return nil, err
		}
		if candle.Close, err = parseFloat("close", row[4]); err != nil {
			return nil, err
		}
		if candle.Volume, err = parseFloat("volume", row[5]); err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

func (a *Bybit) CandlesReversed() bool { return true }
