package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tickerflow/internal/symbols"
	"tickerflow/models"
)

// Kucoin speaks the spot websocket (topic-string envelope) and the market
// candles REST API.
type Kucoin struct{}

func (a *Kucoin) VenueID() string { return "kucoin" }

type kucoinControl struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Response bool   `json:"response"`
}

func (a *Kucoin) control(typ string, syms, channels []string) ([]byte, error) {
	topic := "/market/ticker"
	if len(channels) > 0 && channels[0] != "ticker" {
		topic = "/market/" + channels[0]
	}
	return json.Marshal(kucoinControl{
		ID:       uuid.NewString(),
		Type:     typ,
		Topic:    fmt.Sprintf("%s:%s", topic, strings.Join(syms, ",")),
		Response: true,
	})
}

func (a *Kucoin) BuildSubscribe(syms, channels []string) ([]byte, error) {
	return a.control("subscribe", syms, channels)
}

func (a *Kucoin) BuildUnsubscribe(syms, channels []string) ([]byte, error) {
	return a.control("unsubscribe", syms, channels)
}

type kucoinTicker struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Data    struct {
		Price   string `json:"price"`
		BestBid string `json:"bestBid"`
		BestAsk string `json:"bestAsk"`
		Time    int64  `json:"time"`
	} `json:"data"`
}

// ParseMessage normalizes the ticker push. The kucoin ticker channel carries
// no 24h statistics, so those fields stay unset.
func (a *Kucoin) ParseMessage(raw []byte) (*models.MarketData, error) {
	var msg kucoinTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode kucoin message: %w", err)
	}
	if msg.Type != "message" || !strings.HasPrefix(msg.Topic, "/market/ticker:") {
		return nil, nil
	}

	last, err := parseFloat("price", msg.Data.Price)
	if err != nil {
		return nil, err
	}

	native := strings.TrimPrefix(msg.Topic, "/market/ticker:")
	ts := time.Now().UTC()
	if msg.Data.Time > 0 {
		ts = time.UnixMilli(msg.Data.Time).UTC()
	}

	return &models.MarketData{
		Symbol:    symbols.Canonical("kucoin", native),
		Venue:     "kucoin",
		Timestamp: ts,
		LastPrice: last,
		Bid:       optFloat(msg.Data.BestBid),
		Ask:       optFloat(msg.Data.BestAsk),
	}, nil
}

var kucoinIntervals = map[string]string{
	"1m": "1min", "5m": "5min", "15m": "15min",
	"1h": "1hour", "4h": "4hour", "1d": "1day",
}

func (a *Kucoin) HistoryURL(baseURL, symbol, interval string, limit int) string {
	iv, ok := kucoinIntervals[interval]
	if !ok {
		iv = "1hour"
	}
	return fmt.Sprintf("%s/api/v1/market/candles?type=%s&symbol=%s", baseURL, iv, symbol)
}

type kucoinCandleResponse struct {
	Code string     `json:"code"`
	Data [][]string `json:"data"`
}

// ParseCandles decodes the candles response. Watch the column order: rows
// are [time (s), open, close, high, low, volume, turnover], newest first.
func (a *Kucoin) ParseCandles(body []byte) ([]models.Candle, error) {
	var resp kucoinCandleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode kucoin candles: %w", err)
	}
	if resp.Code != "200000" {
		return nil, fmt.Errorf("kucoin candles error code %s", resp.Code)
	}

	out := make([]models.Candle, 0, len(resp.Data))
	for i, row := range resp.Data {
		if len(row) < 6 {
			return nil, fmt.Errorf("kucoin candle row %d has %d columns", i, len(row))
		}
		sec, err := parseFloat("timestamp", row[0])
		if err != nil {
			return nil, err
		}
		candle := models.Candle{OpenTime: time.Unix(int64(sec), 0).UTC()}
		if candle.Open, err = parseFloat("open", row[1]); err != nil {
			return nil, err
		}
		if candle.Close, err = parseFloat("close", row[2]); err != nil {
			return nil, err
		}
		if candle.High, err = parseFloat("high", row[3]); err != nil {
			return nil, err
		}
		if candle.Low, err = parseFloat("low", row[4]); err != nil {
			return nil, err
		}
		if candle.Volume, err = parseFloat("volume", row[5]); err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

func (a *Kucoin) CandlesReversed() bool { return true }
