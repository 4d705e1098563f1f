package reconcile

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// SearchK is how many hits are requested per discrepancy.
	SearchK = 3
	// CorroborationThreshold is the similarity at which a hit downgrades a
	// missing_in_target to low severity.
	CorroborationThreshold = 0.7
)

// Downgrade looks up evidence for every high-severity missing_in_target and
// lowers it to Low when a hit reaches CorroborationThreshold. Search
// failures leave the discrepancy untouched. The input slice is not
// modified; the second return is the number of downgrades.
func Downgrade(ctx context.Context, search SemanticSearch, ownerID string, ds []Discrepancy, logger *slog.Logger) ([]Discrepancy, int) {
	out := make([]Discrepancy, len(ds))
	copy(out, ds)
	if search == nil {
		return out, 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	downgraded := 0
	for i, d := range out {
		if d.Type != MissingInTarget || d.Severity != High || d.Source == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		hits, err := search.Query(ctx, d.Source.Text(), ownerID, SearchK)
		if err != nil {
			logger.Warn("semantic search failed", "source_id", d.Source.SourceID, "error", err)
			continue
		}
		for _, h := range hits {
			if h.Similarity >= CorroborationThreshold {
				out[i].Severity = Low
				out[i].Note = fmt.Sprintf("corroborated by document evidence (similarity %.2f)", h.Similarity)
				downgraded++
				break
			}
		}
	}
	return out, downgraded
}
