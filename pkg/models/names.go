package models

import "strings"

var stockNames = map[string]string{
	"NVDA":  "Nvidia",
	"AAPL":  "Apple",
	"TSLA":  "Tesla",
	"MSFT":  "Microsoft",
	"AMZN":  "Amazon",
	"GOOGL": "Google",
	"META":  "Meta",
	"NFLX":  "Netflix",
}

// Name returns the display name for symbol, or the symbol itself when it is
// not in the table.
func Name(symbol string) string {
	if n, ok := stockNames[strings.ToUpper(symbol)]; ok {
		return n
	}
	return symbol
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols, keeping the
// first occurrence order. Empty entries are dropped.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
