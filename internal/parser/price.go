package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMinSanePrice rejects values scraped from promotional badges such as "₹1".
var DefaultMinSanePrice = decimal.NewFromInt(1000)

var priceToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice reads the first grouped-digit amount in text, e.g. "₹1,44,900.00".
// Group separators are dropped before parsing. Amounts below min are reported
// as absent.
func ParsePrice(text string, min decimal.Decimal) (decimal.Decimal, bool) {
	token := priceToken.FindString(text)
	if token == "" {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if amount.LessThan(min) {
		return decimal.Zero, false
	}
	return amount, true
}

// ParsePricePtr is ParsePrice returning nil for an absent price.
func ParsePricePtr(text string, min decimal.Decimal) *decimal.Decimal {
	amount, ok := ParsePrice(text, min)
	if !ok {
		return nil
	}
	return &amount
}
