package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/analfistt/ArbiWeb/api"
	"github.com/analfistt/ArbiWeb/internal/config"
	"github.com/analfistt/ArbiWeb/internal/core"
	"github.com/analfistt/ArbiWeb/internal/data"
	"github.com/analfistt/ArbiWeb/internal/live"
	"github.com/analfistt/ArbiWeb/internal/mock"
	"github.com/analfistt/ArbiWeb/internal/service"
	"github.com/analfistt/ArbiWeb/internal/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg, err := config.GetConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, stopping services")
		cancel()
	}()

	// 1. Upstream price source: live HTTP client, or the simulated walk in
	// demo deployments.
	var source service.PriceSource
	if cfg.Upstream.DemoMode {
		logger.Info("running with simulated upstream (demo mode)")
		source = mock.NewPriceSource()
	} else {
		source = upstream.NewClient(cfg.Upstream.BaseURL, cfg.UpstreamTimeout(), logger)
	}

	// 2. Shared state: current prices, sliding price history, candle cache.
	priceStore := data.NewPriceStore()

	bufferConfig := data.DefaultBufferConfig()
	if cfg.Feed.HistoryMaxPoints > 0 {
		bufferConfig.MaxPointsPerSymbol = cfg.Feed.HistoryMaxPoints
	}
	history := data.NewHistoryBufferWithConfig(bufferConfig)

	var candleCache data.CandleCache
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Cache.RedisHost, cfg.Cache.RedisPort),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		redisCache := data.NewRedisCandleCache(client, logger)
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		candleCache = redisCache
	} else {
		candleCache = data.NewMemoryCandleCache()
	}

	// 3. Live update hub and its liveness sweep.
	hub := live.NewHub(cfg.PingInterval(), logger)
	go hub.Run(ctx)

	// 4. Candle resolver serving the API.
	feed := service.NewPriceService(source, candleCache, history, priceStore, cfg.CacheTTL(), logger)

	// 5. Polling scheduler feeding store, history and hub.
	poller := core.NewPoller(source, priceStore, history, hub, cfg.Feed.Symbols, cfg.PollInterval(), logger)
	poller.Start(ctx)
	defer poller.Stop()

	apiHandler := api.NewAPIHandler(feed, hub, cfg.Live.JWTSecret, logger)

	logger.Info("price feed starting",
		"port", cfg.App.Port,
		"symbols", cfg.Feed.Symbols,
		"cache_backend", cfg.Cache.Backend)

	log.Fatal(apiHandler.StartServer(cfg.App.Port))
}
