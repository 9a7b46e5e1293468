package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetPrices handles GET /api/v1/prices requests
func (h *APIHandler) GetPrices(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.GetPrices())
}

// GetPrice handles GET /api/v1/prices/:symbol requests
func (h *APIHandler) GetPrice(c *gin.Context) {
	cleanSymbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	sample, ok := h.feed.GetPrice(cleanSymbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price observed for symbol"})
		return
	}

	c.JSON(http.StatusOK, sample)
}

// GetCandles handles GET /api/v1/candles requests. The feed guarantees a
// non-empty series, so this endpoint only fails on invalid input.
func (h *APIHandler) GetCandles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	symbol := c.Query("symbol")
	interval := c.Query("interval")
	limit := c.Query("limit")

	cleanSymbol, cleanInterval, validLimit, err := h.validator.ValidateCandlesRequest(symbol, interval, limit)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	candles := h.feed.GetCandles(ctx, cleanSymbol, cleanInterval, validLimit)

	c.JSON(http.StatusOK, candles)
}

// GetHistory handles GET /api/v1/history requests
func (h *APIHandler) GetHistory(c *gin.Context) {
	cleanSymbol, minutes, err := h.validator.ValidateHistoryRequest(c.Query("symbol"), c.Query("minutes"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.feed.GetHistoricalPrices(cleanSymbol, minutes))
}

// HealthCheck handles GET /health requests. tracked_symbols is zero until the
// first successful poll, which makes cold starts visible to probes.
func (h *APIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "OK",
		"service":         ServiceName,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"version":         ServiceVersion,
		"tracked_symbols": len(h.feed.GetPrices()),
		"subscribers":     h.hub.TotalConnections(),
	})
}

// handleError logs the error and sends appropriate HTTP response
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID, exists := c.Get(RequestIDContextKey)
	requestIDStr := "unknown"
	if exists {
		if id, ok := requestID.(string); ok {
			requestIDStr = id
		}
	}

	h.logger.Error("API error",
		slog.String("request_id", requestIDStr),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
		slog.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestIDStr,
	})
}

// handleValidationError handles validation errors specifically
func (h *APIHandler) handleValidationError(c *gin.Context, err error) {
	h.handleError(c, err, http.StatusBadRequest, err.Error())
}
