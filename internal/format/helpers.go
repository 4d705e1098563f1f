package format

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount formats a decimal with two places.
func Amount(d decimal.Decimal) string { return d.StringFixed(2) }

// Percent formats a ratio in [0,1] as "87.5%".
func Percent(r float64) string { return fmt.Sprintf("%.1f%%", r*100) }

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
