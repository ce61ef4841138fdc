package symbols

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		venue string
		in    string
		want  string
	}{
		{"binance", "BTCUSDT", "BTCUSDT"},
		{"binance", "btcusdt", "BTCUSDT"},
		{"bybit", "ETHUSDT", "ETHUSDT"},
		{"coinbase", "BTC-USD", "BTCUSD"},
		{"kraken", "XBT/USD", "BTCUSD"},
		{"kraken", "ETH/USD", "ETHUSD"},
		{"kucoin", "BTC-USDT", "BTCUSDT"},
		{"kucoin", "XBT-USDT", "BTCUSDT"},
		{"okx", "BTC-USDT", "BTCUSDT"},
		{"okx", "BTC-USDT-SWAP", "BTCUSDT"},
		{"meridian", "BTC-USD", "BTCUSD"},
		{"meridian", "BTC/USD", "BTCUSD"},
	}

	for _, c := range cases {
		if got := Canonical(c.venue, c.in); got != c.want {
			t.Errorf("Canonical(%s, %s) = %s, want %s", c.venue, c.in, got, c.want)
		}
	}
}
