package venue

// Descriptors returns the built-in venue list. The engine treats this data
// as immutable; a reduced list can be passed to NewCatalog in tests.
func Descriptors() []*Config {
	return []*Config{
		{
			ID:            "binance",
			Name:          "Binance",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "global",
			RESTBaseURL:   "https://api.binance.com",
			StreamBaseURL: "wss://stream.binance.com:9443/ws",
			Symbols:       []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT", "BNBUSDT"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret"},
				RateLimits: []RateLimitTier{
					{Name: "request_weight", RequestsPerMinute: 6000},
					{Name: "raw_requests", RequestsPerMinute: 61000},
				},
			},
			Features: FeatureFlags{
				Spot: true, Margin: true, Futures: true, Options: true,
				Lending: true, Staking: true,
				OrderTypes: []string{"limit", "market", "stop_loss", "take_profit", "oco"},
				MinOrder:   0.00001,
			},
			Fees:   FeeSchedule{MakerPct: 0.1, TakerPct: 0.1},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "coinbase",
			Name:          "Coinbase Exchange",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "us",
			RESTBaseURL:   "https://api.exchange.coinbase.com",
			StreamBaseURL: "wss://ws-feed.exchange.coinbase.com",
			Symbols:       []string{"BTC-USD", "ETH-USD", "SOL-USD", "XRP-USD", "ADA-USD", "DOGE-USD"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret", "passphrase"},
				RateLimits: []RateLimitTier{
					{Name: "public", RequestsPerMinute: 600},
					{Name: "private", RequestsPerMinute: 900},
				},
			},
			Features: FeatureFlags{
				Spot:       true,
				OrderTypes: []string{"limit", "market", "stop"},
				MinOrder:   0.000016,
			},
			Fees:   FeeSchedule{MakerPct: 0.4, TakerPct: 0.6},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "kraken",
			Name:          "Kraken",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "us",
			RESTBaseURL:   "https://api.kraken.com",
			StreamBaseURL: "wss://ws.kraken.com",
			Symbols:       []string{"XBT/USD", "ETH/USD", "SOL/USD", "XRP/USD", "ADA/USD"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "private_key"},
				RateLimits: []RateLimitTier{
					{Name: "public", RequestsPerMinute: 60},
					{Name: "private", RequestsPerMinute: 120},
				},
			},
			Features: FeatureFlags{
				Spot: true, Margin: true, Futures: true, Staking: true,
				OrderTypes: []string{"limit", "market", "stop_loss", "take_profit", "settle_position"},
				MinOrder:   0.0001,
			},
			Fees:   FeeSchedule{MakerPct: 0.16, TakerPct: 0.26},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "okx",
			Name:          "OKX",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "asia",
			RESTBaseURL:   "https://www.okx.com",
			StreamBaseURL: "wss://ws.okx.com:8443/ws/v5/public",
			Symbols:       []string{"BTC-USDT", "ETH-USDT", "SOL-USDT", "XRP-USDT", "DOGE-USDT"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret", "passphrase"},
				RateLimits: []RateLimitTier{
					{Name: "public", RequestsPerMinute: 1200},
				},
			},
			Features: FeatureFlags{
				Spot: true, Margin: true, Futures: true, Options: true,
				Lending: true, Staking: true,
				OrderTypes: []string{"limit", "market", "post_only", "fok", "ioc"},
				MinOrder:   0.00001,
			},
			Fees:   FeeSchedule{MakerPct: 0.08, TakerPct: 0.1},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "bybit",
			Name:          "Bybit",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "asia",
			RESTBaseURL:   "https://api.bybit.com",
			StreamBaseURL: "wss://stream.bybit.com/v5/public/spot",
			Symbols:       []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret"},
				RateLimits: []RateLimitTier{
					{Name: "public", RequestsPerMinute: 600},
				},
			},
			Features: FeatureFlags{
				Spot: true, Margin: true, Futures: true, Options: true,
				OrderTypes: []string{"limit", "market"},
				MinOrder:   0.00001,
			},
			Fees:   FeeSchedule{MakerPct: 0.1, TakerPct: 0.1},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "kucoin",
			Name:          "KuCoin",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "asia",
			RESTBaseURL:   "https://api.kucoin.com",
			StreamBaseURL: "wss://ws-api-spot.kucoin.com",
			Symbols:       []string{"BTC-USDT", "ETH-USDT", "SOL-USDT", "XRP-USDT", "ADA-USDT"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret", "passphrase"},
				RateLimits: []RateLimitTier{
					{Name: "public", RequestsPerMinute: 2000},
				},
			},
			Features: FeatureFlags{
				Spot: true, Margin: true, Futures: true, Lending: true,
				OrderTypes: []string{"limit", "market", "stop"},
				MinOrder:   0.00001,
			},
			Fees:   FeeSchedule{MakerPct: 0.1, TakerPct: 0.1},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true, OrderExecution: true,
				HistoricalData: true, OrderBookDepth: true,
			},
		},
		{
			ID:            "meridian",
			Name:          "Meridian Markets",
			AssetClasses:  []AssetClass{AssetCrypto, AssetCommodities},
			Region:        "eu",
			RESTBaseURL:   "https://api.meridian.example",
			StreamBaseURL: "wss://stream.meridian.example/v1",
			Symbols:       []string{"BTCUSD", "ETHUSD", "XAUUSD"},
			Hours: TradingHours{
				Timezone: "Europe/London",
				Open:     "07:00",
				Close:    "21:00",
				Days:     "mon-fri",
			},
			Auth: AuthDescriptor{
				Kind:             AuthJWT,
				CredentialFields: []string{"client_id", "client_secret"},
				RateLimits: []RateLimitTier{
					{Name: "standard", RequestsPerMinute: 300},
				},
			},
			Features: FeatureFlags{
				Spot:       true,
				OrderTypes: []string{"limit", "market"},
				MinOrder:   0.001,
			},
			Fees:   FeeSchedule{MakerPct: 0.2, TakerPct: 0.25},
			Status: StatusActive,
			Capabilities: Capabilities{
				RealtimeData: true,
			},
		},
		{
			ID:            "ftxlegacy",
			Name:          "FTX (legacy)",
			AssetClasses:  []AssetClass{AssetCrypto},
			Region:        "global",
			RESTBaseURL:   "https://ftx.example",
			StreamBaseURL: "",
			Symbols:       []string{"BTC/USD", "ETH/USD"},
			Auth: AuthDescriptor{
				Kind:             AuthAPIKey,
				CredentialFields: []string{"api_key", "api_secret"},
			},
			Features: FeatureFlags{Spot: true},
			Fees:     FeeSchedule{MakerPct: 0.02, TakerPct: 0.07},
			Status:   StatusDeprecated,
			Capabilities: Capabilities{
				RealtimeData: false,
			},
		},
	}
}
