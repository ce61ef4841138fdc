package venue

import "time"

// AssetClass groups venues by the instruments they list.
type AssetClass string

const (
	AssetCrypto      AssetClass = "crypto"
	AssetEquities    AssetClass = "equities"
	AssetCommodities AssetClass = "commodities"
	AssetForex       AssetClass = "forex"
)

// Status is the lifecycle state of a venue descriptor.
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusDeprecated  Status = "deprecated"
)

// AuthKind describes how a venue authenticates API consumers.
type AuthKind string

const (
	AuthAPIKey      AuthKind = "apikey"
	AuthOAuth       AuthKind = "oauth"
	AuthJWT         AuthKind = "jwt"
	AuthCertificate AuthKind = "certificate"
)

// RateLimitTier is one published rate limit bucket for a venue API.
type RateLimitTier struct {
	Name              string `yaml:"name"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// AuthDescriptor captures the authentication shape of a venue so user
// supplied credentials can be validated and stored.
type AuthDescriptor struct {
	Kind             AuthKind        `yaml:"kind"`
	CredentialFields []string        `yaml:"credential_fields"`
	RateLimits       []RateLimitTier `yaml:"rate_limits"`
}

// TradingHours describes a venue's session window. Always-open venues leave
// Open and Close empty.
type TradingHours struct {
	Timezone string `yaml:"timezone"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
	Days     string `yaml:"days"`
}

// FeatureFlags lists the trading products and order shapes a venue offers.
type FeatureFlags struct {
	Spot    bool `yaml:"spot"`
	Margin  bool `yaml:"margin"`
	Futures bool `yaml:"futures"`
	Options bool `yaml:"options"`
	Lending bool `yaml:"lending"`
	Staking bool `yaml:"staking"`

	OrderTypes  []string `yaml:"order_types"`
	MaxPosition float64  `yaml:"max_position"`
	MinOrder    float64  `yaml:"min_order"`
}

// FeeSchedule holds the headline maker/taker fees in percent.
type FeeSchedule struct {
	MakerPct float64 `yaml:"maker_pct"`
	TakerPct float64 `yaml:"taker_pct"`
}

// Capabilities are the flags the engine consumes when deciding what to do
// with a venue.
type Capabilities struct {
	RealtimeData   bool `yaml:"realtime_data"`
	OrderExecution bool `yaml:"order_execution"`
	HistoricalData bool `yaml:"historical_data"`
	OrderBookDepth bool `yaml:"order_book_depth"`
}

// Config is the immutable descriptor for one venue. Instances are created
// once at process start and shared read-only across all components.
type Config struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	AssetClasses []AssetClass `yaml:"asset_classes"`
	Region       string       `yaml:"region"`

	RESTBaseURL   string `yaml:"rest_base_url"`
	StreamBaseURL string `yaml:"stream_base_url"`

	Symbols []string     `yaml:"symbols"`
	Hours   TradingHours `yaml:"hours"`

	Auth     AuthDescriptor `yaml:"auth"`
	Features FeatureFlags   `yaml:"features"`
	Fees     FeeSchedule    `yaml:"fees"`

	Status       Status       `yaml:"status"`
	Capabilities Capabilities `yaml:"capabilities"`
}

// SupportsSymbol reports whether the venue lists the given native symbol.
func (c *Config) SupportsSymbol(symbol string) bool {
	for _, s := range c.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// AlwaysOpen reports whether the venue trades around the clock.
func (h TradingHours) AlwaysOpen() bool {
	return h.Open == "" && h.Close == ""
}

// sessionClock is overridable in tests.
var sessionClock = time.Now

// OpenNow reports whether the venue session is currently open. Venues with
// no declared window are treated as always open.
func (h TradingHours) OpenNow() bool {
	if h.AlwaysOpen() {
		return true
	}

	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := sessionClock().In(loc)

	open, err := time.Parse("15:04", h.Open)
	if err != nil {
		return true
	}
	close, err := time.Parse("15:04", h.Close)
	if err != nil {
		return true
	}

	minutes := now.Hour()*60 + now.Minute()
	openM := open.Hour()*60 + open.Minute()
	closeM := close.Hour()*60 + close.Minute()
	if openM <= closeM {
		return minutes >= openM && minutes < closeM
	}
	// overnight session
	return minutes >= openM || minutes < closeM
}
