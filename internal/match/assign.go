package match

import "ledgerflow/internal/record"

// Candidate is a matched pair. Primary and Secondary index into the lists
// given to Assign.
type Candidate struct {
	Primary        record.Record `json:"primary"`
	Secondary      record.Record `json:"secondary"`
	PrimaryIndex   int           `json:"primaryIndex"`
	SecondaryIndex int           `json:"secondaryIndex"`
	Score          float64       `json:"score"`
	Type           Type          `json:"matchType"`
	Breakdown      Breakdown     `json:"breakdown"`
}

// Result is the outcome of one assignment pass.
type Result struct {
	Matches            []Candidate     `json:"matches"`
	UnmatchedPrimary   []record.Record `json:"unmatchedPrimary"`
	UnmatchedSecondary []record.Record `json:"unmatchedSecondary"`
}

// Assign walks primary in order and pairs each record with the
// best-scoring secondary record not yet used. Ties go to the earliest
// secondary. A pair below the fuzzy threshold leaves the primary
// unmatched. Each secondary record is used at most once.
func (c Config) Assign(primary, secondary []record.Record) Result {
	used := make([]bool, len(secondary))
	res := Result{}

	for i, p := range primary {
		best := -1
		var bestBD Breakdown
		bestType := None
		for j, s := range secondary {
			if used[j] {
				continue
			}
			bd, typ := c.Evaluate(p, s)
			if typ == None {
				continue
			}
			if best < 0 || bd.Total > bestBD.Total {
				best, bestBD, bestType = j, bd, typ
			}
		}
		if best < 0 {
			res.UnmatchedPrimary = append(res.UnmatchedPrimary, p)
			continue
		}
		used[best] = true
		res.Matches = append(res.Matches, Candidate{
			Primary:        p,
			Secondary:      secondary[best],
			PrimaryIndex:   i,
			SecondaryIndex: best,
			Score:          bestBD.Total,
			Type:           bestType,
			Breakdown:      bestBD,
		})
	}
	for j, s := range secondary {
		if !used[j] {
			res.UnmatchedSecondary = append(res.UnmatchedSecondary, s)
		}
	}
	return res
}
