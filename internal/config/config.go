package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	App      App      `json:"app"`
	Upstream Upstream `json:"upstream"`
	Feed     Feed     `json:"feed"`
	Cache    Cache    `json:"cache"`
	Live     Live     `json:"live"`
}

type App struct {
	Port int `json:"port"`
}

type Upstream struct {
	BaseURL   string `json:"base_url"`
	TimeoutMs int    `json:"timeout_ms"`
	// DemoMode replaces the HTTP client with the simulated price source.
	DemoMode bool `json:"demo_mode"`
}

type Feed struct {
	// Symbols tracked by the poller, e.g. ["BTC", "ETH", "SOL"].
	Symbols        []string `json:"symbols"`
	PollIntervalMs int      `json:"poll_interval_ms"`
	// HistoryMaxPoints caps the per-symbol history buffer on top of the
	// 24h sliding window.
	HistoryMaxPoints int `json:"history_max_points"`
}

type Cache struct {
	// Backend selects the candle cache implementation: "memory" or "redis".
	Backend       string `json:"backend"`
	TTLSeconds    int    `json:"ttl_seconds"`
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
}

type Live struct {
	JWTSecret      string `json:"jwt_secret"`
	PingIntervalMs int    `json:"ping_interval_ms"`
}

// Default returns the configuration used when no config file is supplied.
func Default() *Config {
	return &Config{
		App: App{Port: 8080},
		Upstream: Upstream{
			BaseURL:   "https://api.coingecko.com/api/v3",
			TimeoutMs: 10000,
		},
		Feed: Feed{
			Symbols:          []string{"BTC", "ETH", "SOL", "BNB", "XRP"},
			PollIntervalMs:   20000,
			HistoryMaxPoints: 10000,
		},
		Cache: Cache{
			Backend:    "memory",
			TTLSeconds: 60,
			RedisHost:  "localhost",
			RedisPort:  6379,
		},
		Live: Live{
			PingIntervalMs: 30000,
		},
	}
}

// GetConfig loads configuration from an optional JSON file and applies
// environment variable overrides on top.
func GetConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if err = json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.App.Port = p
	}

	if baseURL := os.Getenv("UPSTREAM_BASE_URL"); baseURL != "" {
		cfg.Upstream.BaseURL = baseURL
	}
	if timeout := os.Getenv("UPSTREAM_TIMEOUT_MS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			cfg.Upstream.TimeoutMs = t
		}
	}
	if demo := os.Getenv("UPSTREAM_DEMO_MODE"); demo != "" {
		cfg.Upstream.DemoMode = demo == "1" || demo == "true"
	}

	if interval := os.Getenv("POLL_INTERVAL_MS"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			cfg.Feed.PollIntervalMs = i
		}
	}

	// Cache environment variables
	if backend := os.Getenv("CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if ttl := os.Getenv("CACHE_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			cfg.Cache.TTLSeconds = t
		}
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		cfg.Cache.RedisHost = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		cfg.Cache.RedisPort, _ = strconv.Atoi(redisPort)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Cache.RedisPassword = redisPassword
	}
	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		cfg.Cache.RedisDB, _ = strconv.Atoi(redisDB)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Live.JWTSecret = secret
	}

	return cfg, nil
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Live.PingIntervalMs) * time.Millisecond
}
