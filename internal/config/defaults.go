package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServiceName     = "yf_price_fetcher"
	DefaultTimezone        = "America/Sao_Paulo"
	DefaultLogLevel        = "info"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 5
	DefaultMinConns        = 1
	DefaultProviderURL     = "https://query1.finance.yahoo.com"
	DefaultSymbolSuffix    = ".SA"
	DefaultProviderTimeout = 30 * time.Second
	DefaultConcurrency     = 8
	DefaultChunkSize       = 16
	DefaultInterval        = "1d"
	DefaultPeriod          = "1y"
	DefaultScheduleSpec    = "@every 15m"
	DefaultHTTPPort        = 8001
	DefaultMongoDatabase   = "default_db"
	DefaultMongoCollection = "yfinance-history"
	DefaultMongoLifetime   = 1
	DefaultRedisLatestTTL  = 30 * time.Minute
)

func (c *FetcherConfig) applyDefaults() {
	// Service defaults
	if c.Service.Name == "" {
		c.Service.Name = DefaultServiceName
	}
	if c.Service.Timezone == "" {
		c.Service.Timezone = DefaultTimezone
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Provider defaults
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderURL
	}
	if c.Provider.SymbolSuffix == "" {
		c.Provider.SymbolSuffix = DefaultSymbolSuffix
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.Concurrency == 0 {
		c.Provider.Concurrency = DefaultConcurrency
	}

	// Fetch defaults
	if c.Fetch.ChunkSize == 0 {
		c.Fetch.ChunkSize = DefaultChunkSize
	}
	if c.Fetch.Interval == "" {
		c.Fetch.Interval = DefaultInterval
	}
	if c.Fetch.Period == "" && !c.Fetch.UseStartEnd {
		c.Fetch.Period = DefaultPeriod
	}
	if c.Fetch.AutoAdjust == nil {
		c.Fetch.AutoAdjust = boolPtr(true)
	}
	if c.Fetch.Actions == nil {
		c.Fetch.Actions = boolPtr(true)
	}

	// Schedule defaults
	if c.Schedule.Spec == "" {
		c.Schedule.Spec = DefaultScheduleSpec
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}

	// Cache defaults
	if c.Cache.Mongo.Database == "" {
		c.Cache.Mongo.Database = DefaultMongoDatabase
	}
	if c.Cache.Mongo.Collection == "" {
		c.Cache.Mongo.Collection = DefaultMongoCollection
	}
	if c.Cache.Mongo.LifetimeDays == 0 {
		c.Cache.Mongo.LifetimeDays = DefaultMongoLifetime
	}
	if c.Cache.Redis.TTL == 0 {
		c.Cache.Redis.TTL = DefaultRedisLatestTTL
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func boolPtr(b bool) *bool { return &b }
