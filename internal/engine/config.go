package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	APIKeyFile           string
	CountryCodesFile     string
	OutputDir            string
	ConsolidatedDir      string
	AggregateCodes       []string
	YouTubeAPIBase       string
	FetchTimeout         time.Duration
	RequestsPerSecond    float64 // 0 = unpaced
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RedisURL             string
	DatabaseURL          string // empty = postgres sink disabled
	LedgerPath           string // empty = run ledger disabled
	HTTPClient           *http.Client

	DeliverySourceCSV  string
	DeliveryArtifacts  string
	DeliverySchemaFile string // empty = embedded schema
}

// DefaultAggregateCodes are the country tokens used to bucket consolidated datasets.
var DefaultAggregateCodes = []string{"US", "UK", "GB", "DE", "CA", "FR", "KR", "RU", "JP", "BR", "MX", "IN"}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (trending, sources, delivery).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.YouTubeAPIBase == "" {
		c.YouTubeAPIBase = "https://www.googleapis.com/youtube/v3"
	}
	if len(c.AggregateCodes) == 0 {
		c.AggregateCodes = DefaultAggregateCodes
	}
	cfg = c
	Cfg = &cfg
}
