package catalog

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// FormatContextLength formats a context window, e.g. 128000 → "128k", 1000000 → "1M".
func FormatContextLength(length int) string {
	if length >= 1_000_000 {
		return fmt.Sprintf("%dM", int(math.Round(float64(length)/1_000_000)))
	}
	return fmt.Sprintf("%dk", int(math.Round(float64(length)/1_000)))
}

// FormatPricePer1k formats a per-token price as the price of 1k tokens
// without trailing zeros, e.g. 0.00001 → "$0.01", 0.000003 → "$0.003".
func FormatPricePer1k(pricePerToken float64) string {
	per1k := pricePerToken * 1000

	var decimals int
	switch {
	case per1k < 0.001:
		decimals = 6
	case per1k < 0.01:
		decimals = 4
	case per1k < 1:
		decimals = 3
	default:
		decimals = 2
	}

	fixed := strconv.FormatFloat(per1k, 'f', decimals, 64)
	parsed, _ := strconv.ParseFloat(fixed, 64)
	return "$" + strconv.FormatFloat(parsed, 'f', -1, 64)
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// FormatTokenCount formats a token count: "1,234", "12k", "1.5M".
func FormatTokenCount(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return strconv.FormatFloat(float64(tokens)/1_000_000, 'f', -1, 64) + "M"
	case tokens >= 10_000:
		return fmt.Sprintf("%dk", int(math.Round(float64(tokens)/1_000)))
	default:
		return humanize.Comma(int64(tokens))
	}
}
