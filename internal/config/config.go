// Package config loads the pipeline's configuration from environment
// variables, optionally backed by a .env file: loadDotEnv populates the
// process environment first (without overriding anything already set),
// then every setting is read with a documented default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"solana-signal-pipeline/internal/ingestor"
	"solana-signal-pipeline/internal/ingestor/ws"
	"solana-signal-pipeline/internal/scheduler"
	"solana-signal-pipeline/internal/signalengine"
	"solana-signal-pipeline/internal/universe"
)

// Config is every external-interface tunable, plus the component
// configs it feeds (Ingestor, Universe Manager, Signal Engine,
// Scheduler), loaded once at startup.
type Config struct {
	StoreURL          string
	ClickhouseURL     string
	NotifierToken     string
	NotifierChannelID string
	CatalogBaseURL    string
	CatalogAPIKey     string
	StreamWSEndpoint  string
	StreamAPIKey      string
	EnrichmentBaseURL string
	AggregatorBaseURL string
	MetricsAddr       string
	UseMemoryStore    bool

	MinTokenAgeDays       int
	MinLiquidityUSD       float64
	MaxFDVUSD             float64
	MinVolumeSpike        float64
	MaxRSIOversold        float64
	MaxPriceImpactPercent float64
	ProbeUSDAmount        float64

	Universe     universe.Config
	Ingestor     ingestor.Config
	WS           ws.Config
	SignalEngine signalengine.Config
	Scheduler    scheduler.Config
}

// Load populates Config from the process environment, first merging in
// a .env file in the working directory if one exists (teacher's
// loadEnvFile: never overrides a variable already set in the real
// environment).
func Load() (Config, error) {
	loadDotEnv(".env")

	cfg := Config{
		StoreURL:          os.Getenv("STORE_URL"),
		ClickhouseURL:     os.Getenv("CLICKHOUSE_URL"),
		NotifierToken:     os.Getenv("NOTIFIER_TOKEN"),
		NotifierChannelID: os.Getenv("NOTIFIER_CHANNEL_ID"),
		CatalogBaseURL:    envOr("CATALOG_BASE_URL", "https://api.coingecko.com/api/v3"),
		CatalogAPIKey:     os.Getenv("CATALOG_API_KEY"),
		StreamWSEndpoint:  os.Getenv("STREAM_WS_ENDPOINT"),
		StreamAPIKey:      os.Getenv("STREAM_API_KEY"),
		EnrichmentBaseURL: os.Getenv("ENRICHMENT_BASE_URL"),
		AggregatorBaseURL: envOr("AGGREGATOR_BASE_URL", "https://quote-api.jup.ag/v6"),
		MetricsAddr:       envOr("METRICS_ADDR", ":9090"),
		UseMemoryStore:    envBool("USE_MEMORY_STORE", false),

		MinTokenAgeDays:       envInt("MIN_TOKEN_AGE_DAYS", 14),
		MinLiquidityUSD:       envFloat("MIN_LIQUIDITY_USD", 10000),
		MaxFDVUSD:             envFloat("MAX_FDV_USD", 5000000),
		MinVolumeSpike:        envFloat("MIN_VOLUME_SPIKE", 3.0),
		MaxRSIOversold:        envFloat("MAX_RSI_OVERSOLD", 35),
		MaxPriceImpactPercent: envFloat("MAX_PRICE_IMPACT_PERCENT", 3.0),
		ProbeUSDAmount:        envFloat("PROBE_USD_AMOUNT", 10),
	}

	cfg.Universe = universe.DefaultConfig()
	cfg.Universe.MinLiquidityUSD = cfg.MinLiquidityUSD
	cfg.Universe.MaxFDVUSD = cfg.MaxFDVUSD

	cfg.Ingestor = ingestor.DefaultConfig()
	cfg.Ingestor.MinTokenAge = time.Duration(cfg.MinTokenAgeDays) * 24 * time.Hour

	cfg.WS = ws.DefaultConfig()

	cfg.SignalEngine = signalengine.DefaultConfig()
	cfg.SignalEngine.MinVolumeSpike = cfg.MinVolumeSpike
	cfg.SignalEngine.MaxRSIOversold = cfg.MaxRSIOversold
	cfg.SignalEngine.MinLiquidityUSD = cfg.MinLiquidityUSD
	cfg.SignalEngine.MaxPriceImpactPct = cfg.MaxPriceImpactPercent
	cfg.SignalEngine.ProbeUSDAmount = cfg.ProbeUSDAmount

	cfg.Scheduler = scheduler.DefaultConfig()

	if !cfg.UseMemoryStore && cfg.StoreURL == "" {
		return Config{}, fmt.Errorf("config: STORE_URL is required unless USE_MEMORY_STORE=true")
	}
	if cfg.StreamWSEndpoint == "" {
		return Config{}, fmt.Errorf("config: STREAM_WS_ENDPOINT is required")
	}

	return cfg, nil
}

// loadDotEnv reads key=value lines from path into the process
// environment, skipping blank lines, comments, and keys already set.
// A missing file is not an error.
func loadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
