package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ledgerflow/internal/reconcile"
)

const summarizePrompt = `You explain expense reconciliation results to the account owner.
Write two or three plain sentences: what matched, what is missing on each side,
and the most important next step. Do not invent numbers that are not in the data.`

// maxDiscrepancies bounds the discrepancies sent in a summary prompt.
const maxDiscrepancies = 20

// Summarizer implements reconcile.Summarizer on top of a chat completion.
type Summarizer struct {
	client *Client
}

// NewSummarizer wraps client.
func NewSummarizer(client *Client) *Summarizer { return &Summarizer{client: client} }

var _ reconcile.Summarizer = (*Summarizer)(nil)

type summaryInput struct {
	SourceCount      int                     `json:"sourceCount"`
	SourceTotal      string                  `json:"sourceTotal"`
	LedgerCount      int                     `json:"ledgerCount"`
	LedgerTotal      string                  `json:"ledgerTotal"`
	Matched          int                     `json:"matched"`
	MatchRate        float64                 `json:"matchRate"`
	Discrepancies    []reconcile.Discrepancy `json:"discrepancies"`
	SuggestedActions []string                `json:"suggestedActions,omitempty"`
}

// Summarize sends a compact view of r and returns the model's text.
func (s *Summarizer) Summarize(ctx context.Context, r reconcile.Report) (string, error) {
	in := summaryInput{
		SourceCount:      r.Source.Count,
		SourceTotal:      r.Source.Sum.StringFixed(2),
		LedgerCount:      r.Target.Count,
		LedgerTotal:      r.Target.Sum.StringFixed(2),
		Matched:          len(r.Matches),
		MatchRate:        r.MatchRate,
		Discrepancies:    r.Discrepancies,
		SuggestedActions: r.SuggestedActions,
	}
	if len(in.Discrepancies) > maxDiscrepancies {
		in.Discrepancies = in.Discrepancies[:maxDiscrepancies]
	}
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	text, err := s.client.Complete(ctx, []Message{
		{Role: "system", Content: summarizePrompt},
		{Role: "user", Content: string(data)},
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
