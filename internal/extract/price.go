package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches an optional currency symbol followed by an amount with an
// optional comma or dot decimal part.
var priceRe = regexp.MustCompile(`([€$£¥])?\s*(\d+(?:[.,]\d{1,2})?)`)

var currencyBySymbol = map[string]string{
	"€": "EUR",
	"$": "USD",
	"£": "GBP",
	"¥": "JPY",
}

// ParsePrice extracts the first price-looking token from text. Comma decimals
// are normalized to dots. The currency comes from the symbol when present,
// otherwise fallbackCurrency; an empty fallback resolves to EUR.
func ParsePrice(text, fallbackCurrency string) (*float64, string) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ""
	}
	amount := strings.ReplaceAll(m[2], ",", ".")
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return nil, ""
	}

	currency := currencyBySymbol[m[1]]
	if currency == "" {
		currency = fallbackCurrency
	}
	if currency == "" {
		currency = "EUR"
	}
	return &value, currency
}

// parseAmount handles JSON-LD price values, which arrive as numbers or as
// bare numeric strings.
func parseAmount(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		if cleaned == "" {
			return nil
		}
		value, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &value
	default:
		return nil
	}
}
