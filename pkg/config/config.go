package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all engine configuration, loaded from environment variables.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string // json (default) or console
	HTTPPort  string

	// Polymarket API
	PolymarketWSURL      string
	PolymarketCLOBURL    string
	PolymarketGammaURL   string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string
	PrivateKey           string // hex-encoded signing key, no 0x prefix
	FunderAddress        string

	// Market Discovery
	DiscoveryPollInterval time.Duration
	DiscoveryMarketLimit  int
	MarketSlugs           []string // explicit market slugs; empty means discover

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Strategy Engine
	EvalInterval time.Duration

	// Depth arbitrage (sum-to-100)
	SumTo100Enabled      bool
	SumTo100MinEdge      float64
	SumTo100TargetVolume float64
	SumTo100MaxBookAge   time.Duration
	SumTo100MinLiquidity float64

	// Top-of-book arbitrage (clipper)
	ClipperEnabled   bool
	ClipperMinProfit float64

	// Sniper
	SniperEnabled   bool
	SniperMinPrice  float64
	SniperMaxPrice  float64
	SniperMinProfit float64
	SniperMaxSize   float64

	// Fees
	TakerFeeRate float64

	// Risk
	RiskMaxPosition  float64 // shares per token
	RiskMaxNotional  float64 // dollars per trade
	RiskMaxDailyLoss float64 // dollars

	// Execution
	ExecutionMode    string // live, dry_run, paper
	OrderTimeout     time.Duration
	SignerPoolSize   int
	SignerQueueDepth int

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerWindow           time.Duration
	BreakerCooldown         time.Duration

	// Event feed
	EventsEnabled      bool
	EventsBaseURL      string
	EventsPollInterval time.Duration
	EventsLeagues      []string
	EventsBindings     []string // eventID:homeToken:awayToken triples

	// Telemetry
	RedisURL string

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		PolymarketWSURL:      getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		PolymarketCLOBURL:    getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		PrivateKey:           strings.TrimPrefix(os.Getenv("PRIVATE_KEY"), "0x"),
		FunderAddress:        os.Getenv("FUNDER_ADDRESS"),

		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 30*time.Second),
		DiscoveryMarketLimit:  getIntOrDefault("DISCOVERY_MARKET_LIMIT", 50),
		MarketSlugs:           getSliceOrDefault("MARKET_SLUGS", nil),

		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		EvalInterval: getDurationOrDefault("EVAL_INTERVAL", 100*time.Millisecond),

		SumTo100Enabled:      getBoolOrDefault("SUMTO100_ENABLED", true),
		SumTo100MinEdge:      getFloat64OrDefault("SUMTO100_MIN_EDGE", 0.003),
		SumTo100TargetVolume: getFloat64OrDefault("SUMTO100_TARGET_VOLUME", 100.0),
		SumTo100MaxBookAge:   getDurationOrDefault("SUMTO100_MAX_BOOK_AGE", 500*time.Millisecond),
		SumTo100MinLiquidity: getFloat64OrDefault("SUMTO100_MIN_LIQUIDITY", 10.0),

		ClipperEnabled:   getBoolOrDefault("CLIPPER_ENABLED", false),
		ClipperMinProfit: getFloat64OrDefault("CLIPPER_MIN_PROFIT", 0.005),

		SniperEnabled:   getBoolOrDefault("SNIPER_ENABLED", false),
		SniperMinPrice:  getFloat64OrDefault("SNIPER_MIN_PRICE", 0.50),
		SniperMaxPrice:  getFloat64OrDefault("SNIPER_MAX_PRICE", 0.95),
		SniperMinProfit: getFloat64OrDefault("SNIPER_MIN_PROFIT", 1.0),
		SniperMaxSize:   getFloat64OrDefault("SNIPER_MAX_SIZE", 50.0),

		TakerFeeRate: getFloat64OrDefault("TAKER_FEE_RATE", 0.01),

		RiskMaxPosition:  getFloat64OrDefault("RISK_MAX_POSITION", 100.0),
		RiskMaxNotional:  getFloat64OrDefault("RISK_MAX_NOTIONAL", 500.0),
		RiskMaxDailyLoss: getFloat64OrDefault("RISK_MAX_DAILY_LOSS", 200.0),

		ExecutionMode:    getEnvOrDefault("EXECUTION_MODE", "paper"),
		OrderTimeout:     getDurationOrDefault("ORDER_TIMEOUT", 500*time.Millisecond),
		SignerPoolSize:   getIntOrDefault("SIGNER_POOL_SIZE", 4),
		SignerQueueDepth: getIntOrDefault("SIGNER_QUEUE_DEPTH", 64),

		BreakerFailureThreshold: getIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerWindow:           getDurationOrDefault("BREAKER_WINDOW", 30*time.Second),
		BreakerCooldown:         getDurationOrDefault("BREAKER_COOLDOWN", 60*time.Second),

		EventsEnabled:      getBoolOrDefault("EVENTS_ENABLED", false),
		EventsBaseURL:      getEnvOrDefault("EVENTS_BASE_URL", "https://site.api.espn.com/apis/site/v2/sports"),
		EventsPollInterval: getDurationOrDefault("EVENTS_POLL_INTERVAL", 5*time.Second),
		EventsLeagues:      getSliceOrDefault("EVENTS_LEAGUES", []string{"football/nfl", "basketball/nba"}),
		EventsBindings:     getSliceOrDefault("EVENTS_BINDINGS", nil),

		RedisURL: os.Getenv("REDIS_URL"),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_engine"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are internally consistent.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}

	if c.PolymarketWSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty")
	}

	if c.PolymarketCLOBURL == "" {
		return fmt.Errorf("POLYMARKET_CLOB_URL cannot be empty")
	}

	if c.EvalInterval <= 0 {
		return fmt.Errorf("EVAL_INTERVAL must be positive, got %s", c.EvalInterval)
	}

	if c.SumTo100MinEdge <= 0 || c.SumTo100MinEdge >= 1.0 {
		return fmt.Errorf("SUMTO100_MIN_EDGE must be between 0 and 1.0, got %f", c.SumTo100MinEdge)
	}

	if c.SumTo100TargetVolume <= 0 {
		return fmt.Errorf("SUMTO100_TARGET_VOLUME must be positive, got %f", c.SumTo100TargetVolume)
	}

	if c.TakerFeeRate < 0 || c.TakerFeeRate >= 1.0 {
		return fmt.Errorf("TAKER_FEE_RATE must be in [0, 1.0), got %f", c.TakerFeeRate)
	}

	if c.SniperMinPrice <= 0 || c.SniperMaxPrice >= 1.0 || c.SniperMinPrice >= c.SniperMaxPrice {
		return fmt.Errorf("sniper price window must satisfy 0 < min < max < 1.0, got [%f, %f]",
			c.SniperMinPrice, c.SniperMaxPrice)
	}

	if c.RiskMaxPosition <= 0 || c.RiskMaxNotional <= 0 || c.RiskMaxDailyLoss <= 0 {
		return fmt.Errorf("risk limits must be positive")
	}

	if c.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %s", c.OrderTimeout)
	}

	if c.SignerPoolSize <= 0 {
		return fmt.Errorf("SIGNER_POOL_SIZE must be positive, got %d", c.SignerPoolSize)
	}

	switch c.ExecutionMode {
	case "live", "dry_run", "paper":
	default:
		return fmt.Errorf("EXECUTION_MODE must be 'live', 'dry_run' or 'paper', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" && c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required for live execution")
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
