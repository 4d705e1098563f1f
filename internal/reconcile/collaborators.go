package reconcile

import (
	"context"

	"ledgerflow/internal/record"
)

// LedgerStore is the authoritative record source. Fetch may fail
// transiently; the workflow retries it.
type LedgerStore interface {
	Fetch(ctx context.Context, f record.Filter) ([]record.Record, error)
	Create(ctx context.Context, ownerID string, r record.Record) (record.Record, error)
}

// DocumentStore returns opaque detail chunks extracted from the owner's
// documents. Failures degrade to no details.
type DocumentStore interface {
	FetchDetails(ctx context.Context, ownerID string) ([]string, error)
}

// SearchHit is one semantic search result.
type SearchHit struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SemanticSearch looks up corroborating evidence for a record.
type SemanticSearch interface {
	Query(ctx context.Context, text, ownerID string, k int) ([]SearchHit, error)
}

// Summarizer explains a report in natural language.
type Summarizer interface {
	Summarize(ctx context.Context, r Report) (string, error)
}
