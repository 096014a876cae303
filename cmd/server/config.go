package main

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"treasury-charts/internal/poller"
	"treasury-charts/internal/series"
)

// config holds the server settings. Flags default to environment variables.
type config struct {
	rpcEndpoint   string
	priceFeedURL  string
	priceAPIKey   string
	priceMaxAge   time.Duration
	postgresDSN   string
	clickhouseDSN string
	redisAddr     string
	redisPassword string
	useMemory     bool
	httpAddr      string
	pollInterval  time.Duration
	rebaseRange   int
}

// loadEnvFile loads .env if present. Variables already set are kept.
func loadEnvFile() {
	_ = godotenv.Load()
}

func parseConfig(args []string) (*config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	cfg := &config{}
	fs.StringVar(&cfg.rpcEndpoint, "rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "Chain JSON-RPC HTTP endpoint")
	fs.StringVar(&cfg.priceFeedURL, "price-feed-url", os.Getenv("PRICE_FEED_URL"), "Price feed base URL (default CoinGecko)")
	fs.StringVar(&cfg.priceAPIKey, "price-api-key", os.Getenv("PRICE_FEED_API_KEY"), "Price feed API key")
	fs.DurationVar(&cfg.priceMaxAge, "price-max-age", envDuration("PRICE_MAX_AGE", time.Hour), "Oldest stored price used when the feed fails (0 = any)")
	fs.StringVar(&cfg.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	fs.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	fs.StringVar(&cfg.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the chart cache (empty = in-memory)")
	fs.StringVar(&cfg.redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	fs.BoolVar(&cfg.useMemory, "use-memory", envBool("USE_MEMORY"), "Use in-memory storage instead of PostgreSQL and ClickHouse")
	fs.StringVar(&cfg.httpAddr, "http-addr", envString("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.DurationVar(&cfg.pollInterval, "poll-interval", envDuration("POLL_INTERVAL", poller.DefaultInterval), "Treasury snapshot poll interval")
	fs.IntVar(&cfg.rebaseRange, "rebase-range", envInt("REBASE_RANGE", series.DefaultRebaseRange), "Number of rebases shown per chart")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.rpcEndpoint == "" {
		return errors.New("--rpc-endpoint is required")
	}
	if !c.useMemory && (c.postgresDSN == "" || c.clickhouseDSN == "") {
		return errors.New("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if c.pollInterval <= 0 {
		return errors.New("--poll-interval must be positive")
	}
	if c.rebaseRange <= 0 {
		return errors.New("--rebase-range must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
