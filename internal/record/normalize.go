package record

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Aliases lists the accepted input keys for each canonical field, in
// lookup order. Keys are matched case-insensitively.
var Aliases = map[string][]string{
	"amount":      {"amount", "value", "total", "sum", "price", "debit", "credit"},
	"date":        {"date", "transaction_date", "txn_date", "posted_at", "expense_date", "created_at", "timestamp"},
	"description": {"description", "desc", "memo", "note", "narrative", "details", "name", "title", "merchant", "payee"},
	"category":    {"category", "type", "tag", "kind"},
	"sourceId":    {"source_id", "sourceId", "id", "reference", "ref", "external_id"},
}

// Normalize maps a raw entry onto a Record. It never fails: unusable
// amounts become zero and unusable dates become empty.
func Normalize(raw Raw) Record {
	lower := make(map[string]any, len(raw))
	for k, v := range raw {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, taken := lower[lk]; !taken || k == lk {
			lower[lk] = v
		}
	}
	pick := func(field string) any {
		for _, alias := range Aliases[field] {
			v, ok := lower[strings.ToLower(alias)]
			if !ok || v == nil {
				continue
			}
			// A blank cell, such as an empty debit column, defers to the next alias.
			if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
				continue
			}
			return v
		}
		return nil
	}

	return Record{
		Amount:      ParseAmount(pick("amount")),
		Date:        ParseDate(pick("date")),
		Description: NormalizeText(stringify(pick("description"))),
		Category:    NormalizeText(stringify(pick("category"))),
		SourceID:    strings.TrimSpace(stringify(pick("sourceId"))),
	}
}

// NormalizeAll normalizes every entry, preserving order.
func NormalizeAll(raws []Raw) []Record {
	out := make([]Record, len(raws))
	for i, r := range raws {
		out[i] = Normalize(r)
	}
	return out
}

// ParseAmount accepts numbers, decimals and strings carrying currency
// symbols, thousands separators or accounting-style parentheses.
// Anything else yields zero.
func ParseAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt32(x)
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return decimal.NewFromUint64(uint64(x))
	case uint64:
		return decimal.NewFromUint64(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		return parseAmountString(x.String())
	case string:
		return parseAmountString(x)
	default:
		return decimal.Zero
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

var (
	// Thousands grouped by commas, optional dot decimals: 1,234.56
	dotDecimal = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)
	// Thousands grouped by dots, optional comma decimals: 1.234,56
	commaDecimal = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})+|\d+)(?:,\d+)?$`)
	scientific   = regexp.MustCompile(`^\d+(?:\.\d+)?[eE][+-]?\d+$`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

// parseAmountString accepts one optional sign or wrapping parentheses, a
// currency symbol or ISO code at either end, and a plain, grouped or
// scientific number. Anything else is zero.
func parseAmountString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	signed := false
	takeSign := func() {
		if signed {
			return
		}
		for _, p := range []string{"-", "−", "+"} {
			if rest, ok := strings.CutPrefix(s, p); ok {
				signed = true
				negative = negative != (p != "+")
				s = strings.TrimSpace(rest)
				return
			}
		}
	}
	takeSign()
	s = stripCurrency(s)
	takeSign()

	var clean string
	switch {
	case s == "":
		return decimal.Zero
	case dotDecimal.MatchString(s) && !decimalComma(s):
		clean = strings.ReplaceAll(s, ",", "")
	case commaDecimal.MatchString(s):
		clean = strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case scientific.MatchString(s):
		clean = s
	default:
		return decimal.Zero
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// stripCurrency removes one currency symbol or uppercase ISO code from
// either end of s.
func stripCurrency(s string) string {
	if r, size := utf8.DecodeRuneInString(s); size > 0 && unicode.Is(unicode.Sc, r) {
		return strings.TrimSpace(s[size:])
	}
	if r, size := utf8.DecodeLastRuneInString(s); size > 0 && unicode.Is(unicode.Sc, r) {
		return strings.TrimSpace(s[:len(s)-size])
	}
	if len(s) > 3 && currencyCode.MatchString(s[:3]) {
		return strings.TrimSpace(s[3:])
	}
	if len(s) > 3 && currencyCode.MatchString(s[len(s)-3:]) {
		return strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

// decimalComma reports whether the last comma separates decimals, as in
// "1.234,56" or "12,5", rather than thousands as in "1,000".
func decimalComma(s string) bool {
	i := strings.LastIndex(s, ",")
	if i < 0 || strings.Count(s, ",") > 1 {
		return false
	}
	if strings.Contains(s, ".") {
		return i > strings.LastIndex(s, ".")
	}
	return len(s)-i-1 != 3
}

// ParseDate returns the YYYY-MM-DD form of v, or "" when v is missing or
// not a recognisable date. Integers are unix seconds, or milliseconds when
// they have 13 digits.
func ParseDate(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(DateLayout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.Format(DateLayout)
	case int:
		return fromUnix(int64(x))
	case int64:
		return fromUnix(x)
	case float64:
		return fromUnix(int64(x))
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return fromUnix(n)
		}
		return ""
	case string:
		return parseDateString(x)
	default:
		return ""
	}
}

func fromUnix(n int64) string {
	if n <= 0 {
		return ""
	}
	if n >= 1e12 {
		return time.UnixMilli(n).UTC().Format(DateLayout)
	}
	return time.Unix(n, 0).UTC().Format(DateLayout)
}

func parseDateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == 10 || len(s) == 13 {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n)
		}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return ""
	}
	return t.Format(DateLayout)
}

// NormalizeText applies NFKC, full case folding, trimming and whitespace
// collapsing.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
