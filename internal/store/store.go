// Package store persists ledger entries. Both implementations satisfy
// reconcile.LedgerStore.
package store

import (
	"context"
	"errors"

	"ledgerflow/internal/record"
)

// DefaultDBPath is the default relative path for the SQLite ledger.
// Open creates the parent directory.
const DefaultDBPath = ".ledgerflow/ledger.db"

var (
	// ErrNotFound is returned when an entry does not exist for the owner.
	ErrNotFound = errors.New("store: entry not found")
	// ErrDuplicate is returned when an entry ID is already taken.
	ErrDuplicate = errors.New("store: duplicate entry")
	// ErrNoOwner is returned when an operation has no owner ID.
	ErrNoOwner = errors.New("store: owner id is required")
)

// Store is the ledger persistence facade used by the CLI, the MCP server and
// the reconciliation workflow. Entries are scoped by owner; the record's
// SourceID is the ledger entry ID.
type Store interface {
	Fetch(ctx context.Context, f record.Filter) ([]record.Record, error)
	Create(ctx context.Context, ownerID string, r record.Record) (record.Record, error)
	Get(ctx context.Context, ownerID, id string) (record.Record, error)
	// Import creates every record whose ID is not taken yet and reports how
	// many were inserted.
	Import(ctx context.Context, ownerID string, records []record.Record) (int, error)
	Close() error
}
