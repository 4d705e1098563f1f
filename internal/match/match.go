// Package match scores pairs of normalized records and assigns one-to-one
// matches between a primary and a secondary list.
package match

import (
	"fmt"
	"math"
	"strings"

	"ledgerflow/internal/record"

	"github.com/shopspring/decimal"
)

// Type classifies a scored pair.
type Type string

const (
	Exact    Type = "exact"
	Probable Type = "probable"
	Fuzzy    Type = "fuzzy"
	None     Type = "none"
)

// Weights blend the three component scores. They must sum to 1.
type Weights struct {
	Amount      float64 `json:"amount" yaml:"amount"`
	Date        float64 `json:"date" yaml:"date"`
	Description float64 `json:"description" yaml:"description"`
}

// Thresholds are inclusive lower bounds for each match type.
type Thresholds struct {
	Exact    float64 `json:"exact" yaml:"exact"`
	Probable float64 `json:"probable" yaml:"probable"`
	Fuzzy    float64 `json:"fuzzy" yaml:"fuzzy"`
}

// Config tunes scoring and assignment.
type Config struct {
	Weights        Weights    `json:"weights" yaml:"weights"`
	Thresholds     Thresholds `json:"thresholds" yaml:"thresholds"`
	DateWindowDays int        `json:"date_window_days" yaml:"date_window_days"`
	// RequireDates scores a missing date as 0; otherwise it is neutral (0.5).
	RequireDates bool `json:"require_dates" yaml:"require_dates"`
	// Strict rejects pairs whose amounts differ by more than Tolerance or
	// whose dates differ, before any blending.
	Strict    bool            `json:"strict" yaml:"strict"`
	Tolerance decimal.Decimal `json:"tolerance" yaml:"tolerance"`
}

// DefaultConfig returns the standard weights 0.4/0.3/0.3 and thresholds
// 0.9/0.7/0.5 with a seven day date window.
func DefaultConfig() Config {
	return Config{
		Weights:        Weights{Amount: 0.4, Date: 0.3, Description: 0.3},
		Thresholds:     Thresholds{Exact: 0.9, Probable: 0.7, Fuzzy: 0.5},
		DateWindowDays: 7,
		RequireDates:   true,
		Tolerance:      decimal.New(1, -2),
	}
}

// Validate checks that weights sum to 1 and thresholds are ordered in [0,1].
func (c Config) Validate() error {
	w := c.Weights
	if w.Amount < 0 || w.Date < 0 || w.Description < 0 {
		return fmt.Errorf("match weights must be non-negative: %+v", w)
	}
	if sum := w.Amount + w.Date + w.Description; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("match weights must sum to 1, got %g", sum)
	}
	th := c.Thresholds
	if !(0 <= th.Fuzzy && th.Fuzzy <= th.Probable && th.Probable <= th.Exact && th.Exact <= 1) {
		return fmt.Errorf("match thresholds must satisfy 0 <= fuzzy <= probable <= exact <= 1: %+v", th)
	}
	if c.DateWindowDays <= 0 {
		return fmt.Errorf("date window must be positive, got %d", c.DateWindowDays)
	}
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance must not be negative, got %s", c.Tolerance)
	}
	return nil
}

// Breakdown holds the component scores and their weighted total.
type Breakdown struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
	Total       float64 `json:"total"`
}

// Score computes the blended similarity of a (primary) and b (secondary).
// The total is clamped to [0,1] and rounded to 1e-9 so threshold
// comparisons are stable.
func (c Config) Score(a, b record.Record) Breakdown {
	bd := Breakdown{
		Amount:      AmountScore(a.Amount, b.Amount),
		Date:        c.dateScore(a, b),
		Description: Jaccard(a.Text(), b.Text()),
	}
	total := c.Weights.Amount*bd.Amount + c.Weights.Date*bd.Date + c.Weights.Description*bd.Description
	bd.Total = round9(clamp01(total))
	return bd
}

// Classify maps a total score to a match type.
func (c Config) Classify(score float64) Type {
	switch {
	case score >= c.Thresholds.Exact:
		return Exact
	case score >= c.Thresholds.Probable:
		return Probable
	case score >= c.Thresholds.Fuzzy:
		return Fuzzy
	default:
		return None
	}
}

// Evaluate scores and classifies a pair, applying strict mode first.
func (c Config) Evaluate(a, b record.Record) (Breakdown, Type) {
	if c.Strict && !c.strictEqual(a, b) {
		return Breakdown{}, None
	}
	bd := c.Score(a, b)
	return bd, c.Classify(bd.Total)
}

func (c Config) strictEqual(a, b record.Record) bool {
	if a.Amount.Sub(b.Amount).Abs().GreaterThan(c.Tolerance) {
		return false
	}
	return a.Date != "" && a.Date == b.Date
}

// AmountScore is max(0, 1 - |a1-a2|/|a1|). When a1 is zero the score is 1
// only if a2 is also zero.
func AmountScore(a1, a2 decimal.Decimal) float64 {
	if a1.IsZero() {
		if a2.IsZero() {
			return 1
		}
		return 0
	}
	ratio := a1.Sub(a2).Abs().Div(a1.Abs()).InexactFloat64()
	return math.Max(0, 1-ratio)
}

func (c Config) dateScore(a, b record.Record) float64 {
	ta, okA := a.Time()
	tb, okB := b.Time()
	if !okA || !okB {
		if c.RequireDates {
			return 0
		}
		return 0.5
	}
	days := math.Abs(ta.Sub(tb).Hours()) / 24
	window := float64(c.DateWindowDays)
	if window <= 0 {
		window = 7
	}
	return math.Max(0, 1-days/window)
}

// Jaccard is the similarity of the whitespace token sets of a and b,
// counting only tokens longer than two characters. Two empty sets score 0.
func Jaccard(a, b string) float64 {
	sa, sb := tokens(a), tokens(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(f)) > 2 {
			out[f] = true
		}
	}
	return out
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

func round9(x float64) float64 {
	return math.Round(x*1e9) / 1e9
}
