package config

import "time"

// FetcherConfig is the root configuration for a price fetcher instance.
type FetcherConfig struct {
	Service  ServiceConfig  `yaml:"service"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Schedule ScheduleConfig `yaml:"schedule"`
	HTTP     HTTPConfig     `yaml:"http"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServiceConfig identifies this fetcher.
type ServiceConfig struct {
	Name     string `yaml:"name"`     // Written to asset_log.service
	Timezone string `yaml:"timezone"` // Zone used to decide "today"
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Optional rotating log file
}

// DatabaseConfig holds the PostgreSQL connection for asset history.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
	Migrate  bool     `yaml:"migrate"` // Create tables on startup
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ProviderConfig holds Yahoo Finance settings.
type ProviderConfig struct {
	BaseURL      string        `yaml:"base_url"`
	SymbolSuffix string        `yaml:"symbol_suffix"` // Appended to registry tickers (e.g. ".SA")
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"` // Parallel symbol requests per batch
}

// FetchConfig holds incremental sync settings.
type FetchConfig struct {
	ChunkSize   int    `yaml:"chunk_size"`
	Interval    string `yaml:"interval"`
	Period      string `yaml:"period"`
	UseStartEnd bool   `yaml:"use_start_end"`
	StartDate   string `yaml:"start_date"` // YYYY-MM-DD
	EndDate     string `yaml:"end_date"`   // YYYY-MM-DD, exclusive
	AutoAdjust  *bool  `yaml:"auto_adjust"`
	Actions     *bool  `yaml:"actions"`
}

// ScheduleConfig holds the sync trigger settings.
type ScheduleConfig struct {
	Spec       string `yaml:"spec"` // robfig/cron spec, e.g. "@every 15m"
	RunOnStart bool   `yaml:"run_on_start"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// CacheConfig holds the lookup cache settings.
type CacheConfig struct {
	Mongo MongoConfig `yaml:"mongo"`
	Redis RedisConfig `yaml:"redis"`
}

// MongoConfig holds the history document cache settings. Empty URI disables it.
type MongoConfig struct {
	URI          string `yaml:"uri"`
	Database     string `yaml:"database"`
	Collection   string `yaml:"collection"`
	LifetimeDays int    `yaml:"lifetime_days"`
}

// RedisConfig holds the latest price cache settings. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}
