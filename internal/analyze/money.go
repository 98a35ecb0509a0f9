package analyze

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a recognized monetary amount: integer minor units (cents) plus
// an ISO currency code.
type Money struct {
	AmountCents int64
	Currency    string
}

// findMoney matches both "<symbol|code><amount>" and
// "<amount><code|word>" forms. Currency precedence is symbol, then
// explicit ISO code, then the default USD. Amounts use "." as the
// decimal point and "," or space as the thousands separator.
func findMoney(text string) []Money {
	var out []Money
	seen := map[string]bool{}

	for _, m := range pattern("money_symbol_first").FindAllStringSubmatch(text, -1) {
		cur := currencyFor(m[1])
		if amt, ok := parseAmount(m[2]); ok {
			key := m[0]
			if !seen[key] {
				seen[key] = true
				out = append(out, Money{AmountCents: toCents(amt), Currency: cur})
			}
		}
	}
	for _, m := range pattern("money_amount_first").FindAllStringSubmatch(text, -1) {
		cur := currencyFor(m[2])
		if amt, ok := parseAmount(m[1]); ok {
			key := m[0]
			if !seen[key] {
				seen[key] = true
				out = append(out, Money{AmountCents: toCents(amt), Currency: cur})
			}
		}
	}
	return out
}

// currencyFor resolves a matched symbol/code/word to an ISO currency
// code, falling back to defaultCurrency.
func currencyFor(token string) string {
	if cur, ok := currencySymbols[strings.ToLower(token)]; ok {
		return cur
	}
	upper := strings.ToUpper(token)
	if len(upper) == 3 {
		return upper
	}
	return defaultCurrency
}

// parseAmount parses a decimal amount using "." as the decimal point and
// ","/space as thousands separators, via shopspring/decimal so the
// minor-unit conversion in toCents never accumulates binary-float
// rounding error.
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	// If both "," and "." appear, "," is a thousands separator.
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		// Ambiguous: treat comma as a thousands separator unless it looks
		// like a two-digit decimal (e.g. "9,30").
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) == 2 {
			s = parts[0] + "." + parts[1]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// toCents converts a decimal amount to integer minor units.
func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
