package api

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/analfistt/ArbiWeb/internal/live"
	"github.com/analfistt/ArbiWeb/internal/model"
)

// Constants
const (
	DefaultTimeout      = 30 * time.Second
	ServiceVersion      = "1.0.0"
	ServiceName         = "arbiweb-price-feed"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// PriceFeed is the read surface the HTTP layer exposes. GetCandles never
// fails: degraded data comes back instead of errors.
type PriceFeed interface {
	GetPrices() []model.PriceSample
	GetPrice(symbol string) (model.PriceSample, bool)
	GetCandles(ctx context.Context, symbol, interval string, limit int) []model.Candle
	GetHistoricalPrices(symbol string, minutes int) []model.HistoryPoint
}

// APIHandler handles HTTP requests using Gin framework
type APIHandler struct {
	feed      PriceFeed
	hub       *live.Hub
	jwtSecret string
	validator *Validator
	logger    *slog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(feed PriceFeed, hub *live.Hub, jwtSecret string, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		feed:      feed,
		hub:       hub,
		jwtSecret: jwtSecret,
		validator: GetValidator(),
		logger:    logger,
	}
}

// StartServer starts the HTTP server
func (h *APIHandler) StartServer(port int) error {
	router := h.SetupRoutes()
	return router.Run(":" + strconv.Itoa(port))
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add middleware
	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// API routes
	v1 := router.Group("/api/v1")
	v1.GET("/prices", h.GetPrices)
	v1.GET("/prices/:symbol", h.GetPrice)
	v1.GET("/candles", h.GetCandles)
	v1.GET("/history", h.GetHistory)

	router.GET("/ws", h.Subscribe)
	router.GET("/health", h.HealthCheck)

	return router
}
