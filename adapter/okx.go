package adapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// OKX speaks the v5 public websocket (op + args envelope) and the v5 market
// candles REST API.
type OKX struct{}

func (a *OKX) VenueID() string { return "okx" }

type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxControl struct {
	Op   string   `json:"op"`
	Args []okxArg `json:"args"`
}

func (a *OKX) control(op string, syms, channels []string) ([]byte, error) {
	if len(channels) == 0 {
		channels = []string{"tickers"}
	}
	args := make([]okxArg, 0, len(syms)*len(channels))
	for _, ch := range channels {
		for _, s := range syms {
			args = append(args, okxArg{Channel: ch, InstID: s})
		}
	}
	return json.Marshal(okxControl{Op: op, Args: args})
}

func (a *OKX) BuildSubscribe(syms, channels []string) ([]byte, error) {
	return a.control("subscribe", syms, channels)
}

func (a *OKX) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	return a.control("unsubscribe", syms, channels)
}

type okxTicker struct {
	Arg  okxArg `json:"arg"`
	Data []struct {
		InstID  string `json:"instId"`
		Last    string `json:"last"`
		BidPx   string `json:"bidPx"`
		AskPx   string `json:"askPx"`
		Open24h string `json:"open24h"`
		High24h string `json:"high24h"`
		Low24h  string `json:"low24h"`
		Vol24h  string `json:"vol24h"`
		TS      string `json:"ts"`
	} `json:"data"`
}

func (a *OKX) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg okxTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode okx message: %w", err)
	}
	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return nil, nil
	}

	d := msg.Data[0]
	last, err := parseFloat("last price", d.Last)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(d.TS, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	md := &models.MarketData{
		Symbol:    symbols.Canonical("okx", d.InstID),
		Venue:     "okx",
		Timestamp: ts,
		LastPrice: last,
		Volume24h: optFloat(d.Vol24h),
		Bid:       optFloat(d.BidPx),
		Ask:       optFloat(d.AskPx),
		High24h:   optFloat(d.High24h),
		Low24h:    optFloat(d.Low24h),
	}
	if open := optFloat(d.Open24h); open != nil && *open != 0 {
		change := last - *open
		pct := change / *open * 100
		md.Change24h = &change
		md.ChangePct24h = &pct
	}
	return md, nil
}

var okxBars = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m",
	"1h": "1H", "4h": "4H", "1d": "1D",
}

func (a *OKX) HistoryURL(baseURL, symbol, interval string, limit int) string {
	bar, ok := okxBars[interval]
	if !ok {
		bar = "1H"
	}
	return fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d", baseURL, symbol, bar, limit)
}

type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// ParseCandles decodes the candles response: rows of
// [ts (ms), open, high, low, close, volume, ...], newest first.
func (a *OKX) ParseCandles(body []byte) ([]models.Candle, error) {
	var resp okxCandleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode okx candles: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx candles error %s: %s", resp.Code, resp.Msg)
	}

	out := make([]models.Candle, 0, len(resp.Data))
	for i, row := range resp.Data {
		if len(row) < 6 {
			return nil, fmt.Errorf("okx candle row %d has %d columns", i, len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx candle row %d timestamp: %w", i, err)
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

func (a *OKX) CandlesReversed() bool { return true }
