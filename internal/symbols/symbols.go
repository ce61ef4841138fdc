package symbols

import "strings"

// Canonical converts a venue-native symbol to the canonical format used
// throughout the engine: uppercase, no separators, BTC instead of XBT.
// Currently supported venues: binance, bybit, coinbase, kraken, kucoin, okx.
// Unknown venues pass through with separators stripped.
func Canonical(venue, sym string) string {
	sym = strings.ToUpper(sym)
	switch strings.ToLower(venue) {
	case "binance", "bybit":
		// already canonical
	case "coinbase":
		sym = strings.ReplaceAll(sym, "-", "")
	case "kraken":
		sym = strings.ReplaceAll(sym, "/", "")
		sym = strings.ReplaceAll(sym, "-", "")
		if strings.HasPrefix(sym, "XBT") {
			sym = "BTC" + sym[3:]
		}
	case "kucoin":
		sym = strings.ReplaceAll(sym, "-", "")
		if strings.HasPrefix(sym, "XBT") {
			sym = "BTC" + sym[3:]
		}
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	default:
		sym = strings.ReplaceAll(sym, "-", "")
		sym = strings.ReplaceAll(sym, "/", "")
	}
	return sym
}
