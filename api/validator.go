package api

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/analfistt/ArbiWeb/internal/service"
)

// Validator handles validation logic separate from HTTP concerns
type Validator struct {
	supportedIntervals map[string]bool
	symbolRegex        *regexp.Regexp
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// GetValidator returns the singleton validator instance
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		intervals := make(map[string]bool)
		for _, interval := range service.SupportedIntervals() {
			intervals[interval] = true
		}

		validatorInstance = &Validator{
			supportedIntervals: intervals,
			// Ticker symbols: 2-10 letters, e.g. BTC, DOGE.
			symbolRegex: regexp.MustCompile(`^[A-Z]{2,10}$`),
		}
	})
	return validatorInstance
}

// ValidateSymbol validates and normalizes a ticker symbol.
func (v *Validator) ValidateSymbol(symbol string) (string, error) {
	cleanSymbol := strings.ToUpper(v.sanitizeInput(symbol))

	if cleanSymbol == "" {
		return "", errors.New("symbol parameter is required")
	}

	if !v.symbolRegex.MatchString(cleanSymbol) {
		return "", errors.New("symbol must be 2-10 letters")
	}

	return cleanSymbol, nil
}

// ValidateCandlesRequest validates and sanitizes the symbol, interval, and limit for candles
func (v *Validator) ValidateCandlesRequest(symbol, interval, limitStr string) (string, string, int, error) {
	cleanSymbol, err := v.ValidateSymbol(symbol)
	if err != nil {
		return "", "", 0, err
	}

	cleanInterval := strings.ToUpper(v.sanitizeInput(interval))
	if cleanInterval == "" {
		cleanInterval = service.DefaultInterval
	}
	if !v.supportedIntervals[cleanInterval] {
		return "", "", 0, fmt.Errorf("invalid interval '%s'. Supported values: %s",
			interval, strings.Join(service.SupportedIntervals(), ", "))
	}

	limit, err := v.validateLimit(limitStr)
	if err != nil {
		return "", "", 0, err
	}

	return cleanSymbol, cleanInterval, limit, nil
}

// ValidateHistoryRequest validates the symbol and window for history queries.
func (v *Validator) ValidateHistoryRequest(symbol, minutesStr string) (string, int, error) {
	cleanSymbol, err := v.ValidateSymbol(symbol)
	if err != nil {
		return "", 0, err
	}

	// Default to the last hour.
	if minutesStr == "" {
		return cleanSymbol, 60, nil
	}

	minutes, err := strconv.Atoi(v.sanitizeInput(minutesStr))
	if err != nil {
		return "", 0, errors.New("minutes must be a valid number")
	}
	if minutes < 1 || minutes > 1440 {
		return "", 0, errors.New("minutes must be between 1 and 1440")
	}

	return cleanSymbol, minutes, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func (v *Validator) sanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	// Remove null bytes and control characters
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, input)

	// Limit length to prevent DoS
	if len(input) > 100 {
		input = input[:100]
	}

	return input
}

// validateLimit validates the limit parameter for candle requests
func (v *Validator) validateLimit(limitStr string) (int, error) {
	// If limit is not provided, return 0 (no limit)
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(v.sanitizeInput(limitStr))
	if err != nil {
		return 0, errors.New("limit must be a valid number")
	}

	if limit < 0 || limit > 1000 {
		return 0, errors.New("limit must be between 0 and 1000 (0 means no limit)")
	}

	return limit, nil
}
