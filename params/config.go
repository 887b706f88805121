package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Exchange struct {
	BaseURL string        // e.g. http://localhost:8080, requests go to BaseURL + /api/...
	Timeout time.Duration // zero means no client-side timeout
}

type Sync struct {
	PollInterval time.Duration
	// TradeWindow is how many of the most recent trades the store keeps for display.
	TradeWindow int
	// DedupTrades drops repeated tradeIds within a single poll response before
	// truncation. Off by default: the trade window is a plain tail of what the
	// server returned.
	DedupTrades bool
}

type Dashboard struct {
	Addr           string
	AllowedOrigins []string
}

type Journal struct {
	Path string // empty disables the submission journal
}

type Log struct {
	File  string
	Level string
}

type Config struct {
	Exchange     Exchange
	Sync         Sync
	Dashboard    Dashboard
	Journal      Journal
	Log          Log
	MockExchange string // listen address for cmd/mockexchange
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			BaseURL: "http://localhost:8080",
		},
		Sync: Sync{
			PollInterval: 1000 * time.Millisecond,
			TradeWindow:  10,
		},
		Dashboard: Dashboard{
			Addr:           ":3000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Journal: Journal{
			Path: "data/journal",
		},
		Log: Log{
			File:  "data/bookwatch.log",
			Level: "info",
		},
		MockExchange: ":8080",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Exchange.BaseURL = strings.TrimRight(getEnv("API_BASE_URL", cfg.Exchange.BaseURL), "/")
	cfg.Exchange.Timeout = getEnvMillis("CLIENT_TIMEOUT_MS", cfg.Exchange.Timeout)

	cfg.Sync.PollInterval = getEnvMillis("POLL_INTERVAL_MS", cfg.Sync.PollInterval)
	if w := os.Getenv("TRADE_WINDOW"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			cfg.Sync.TradeWindow = n
		}
	}
	if dedup := os.Getenv("DEDUP_TRADES"); dedup != "" {
		cfg.Sync.DedupTrades = dedup == "true"
	}

	cfg.Dashboard.Addr = getEnv("DASHBOARD_ADDR", cfg.Dashboard.Addr)
	if origins := os.Getenv("DASHBOARD_ORIGINS"); origins != "" {
		cfg.Dashboard.AllowedOrigins = strings.Split(origins, ",")
	}

	// JOURNAL_PATH="" must be able to switch the journal off, so check presence
	// rather than emptiness here.
	if path, ok := os.LookupEnv("JOURNAL_PATH"); ok {
		cfg.Journal.Path = path
	}

	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.MockExchange = getEnv("MOCK_EXCHANGE_ADDR", cfg.MockExchange)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
