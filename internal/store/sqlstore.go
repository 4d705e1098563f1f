package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"ledgerflow/internal/record"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// entryRow is the ledger_entries row shape.
type entryRow struct {
	ID          string          `db:"id"`
	OwnerID     string          `db:"owner_id"`
	Amount      decimal.Decimal `db:"amount"`
	Date        string          `db:"entry_date"`
	Description string          `db:"description"`
	Category    string          `db:"category"`
	CreatedAt   string          `db:"created_at"`
}

func (r entryRow) record() record.Record {
	return record.Record{
		Amount:      r.Amount,
		Date:        r.Date,
		Description: r.Description,
		Category:    r.Category,
		SourceID:    r.ID,
	}
}

const entryColumns = `id, owner_id, amount, entry_date, description, category, created_at`

// SqlStore implements Store over database/sql through sqlx. The same SQL
// runs on SQLite and PostgreSQL; placeholders are rebound per driver.
type SqlStore struct {
	db     *sqlx.DB
	driver string
}

// Open opens or creates the ledger and runs migrations. For SQLite the
// parent directory of dsn is created when missing.
func Open(driver, dsn string) (*SqlStore, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases shared and serialises writers.
		db.SetMaxOpenConns(1)
	}
	s := &SqlStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens a SQLite ledger at path.
func OpenSQLite(path string) (*SqlStore, error) { return Open(DriverSQLite, path) }

// Close releases the database handle.
func (s *SqlStore) Close() error { return s.db.Close() }

// SchemaVersion reports the stored schema version.
func (s *SqlStore) SchemaVersion() (int, error) {
	var v int
	err := s.db.Get(&v, "SELECT version FROM schema_version LIMIT 1")
	return v, err
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	v, err := s.SchemaVersion()
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create v2 schema: %w", err)
	}
	if _, err := s.db.Exec(s.db.Rebind("INSERT INTO schema_version(version) VALUES(?)"), currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 runs inside a transaction so a failed migration leaves the
// v1 schema untouched.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Fetch returns the owner's entries ordered by date then ID. Entries without
// a date are always included.
func (s *SqlStore) Fetch(ctx context.Context, f record.Filter) ([]record.Record, error) {
	if f.OwnerID == "" {
		return nil, ErrNoOwner
	}
	q := "SELECT " + entryColumns + " FROM ledger_entries WHERE owner_id = ?"
	args := []any{f.OwnerID}
	if f.From != "" {
		q += " AND (entry_date = '' OR entry_date >= ?)"
		args = append(args, f.From)
	}
	if f.To != "" {
		q += " AND (entry_date = '' OR entry_date <= ?)"
		args = append(args, f.To)
	}
	q += " ORDER BY entry_date, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("fetch ledger entries: %w", err)
	}
	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Get returns one entry or ErrNotFound.
func (s *SqlStore) Get(ctx context.Context, ownerID, id string) (record.Record, error) {
	var row entryRow
	q := s.db.Rebind("SELECT " + entryColumns + " FROM ledger_entries WHERE owner_id = ? AND id = ?")
	err := s.db.GetContext(ctx, &row, q, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ownerID, id)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return row.record(), nil
}

// Create inserts r for ownerID. An empty SourceID is assigned a UUID.
func (s *SqlStore) Create(ctx context.Context, ownerID string, r record.Record) (record.Record, error) {
	if ownerID == "" {
		return record.Record{}, ErrNoOwner
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return record.Record{}, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, inserted, err := s.insert(ctx, tx, ownerID, r)
	if err != nil {
		return record.Record{}, err
	}
	if !inserted {
		return record.Record{}, fmt.Errorf("%w: %s/%s", ErrDuplicate, ownerID, created.SourceID)
	}
	if err := tx.Commit(); err != nil {
		return record.Record{}, fmt.Errorf("commit create tx: %w", err)
	}
	return created, nil
}

// Import inserts records in one transaction, skipping IDs that already exist.
func (s *SqlStore) Import(ctx context.Context, ownerID string, records []record.Record) (int, error) {
	if ownerID == "" {
		return 0, ErrNoOwner
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, r := range records {
		_, inserted, err := s.insert(ctx, tx, ownerID, r)
		if err != nil {
			return 0, err
		}
		if inserted {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import tx: %w", err)
	}
	return n, nil
}

// insert writes one row unless its ID is taken. inserted is false for a
// duplicate.
func (s *SqlStore) insert(ctx context.Context, tx *sqlx.Tx, ownerID string, r record.Record) (record.Record, bool, error) {
	if r.SourceID == "" {
		r.SourceID = uuid.NewString()
	}
	var count int
	q := tx.Rebind("SELECT COUNT(*) FROM ledger_entries WHERE owner_id = ? AND id = ?")
	if err := tx.GetContext(ctx, &count, q, ownerID, r.SourceID); err != nil {
		return r, false, fmt.Errorf("check ledger entry: %w", err)
	}
	if count > 0 {
		return r, false, nil
	}

	row := entryRow{
		ID:          r.SourceID,
		OwnerID:     ownerID,
		Amount:      r.Amount,
		Date:        r.Date,
		Description: r.Description,
		Category:    r.Category,
		CreatedAt:   nowUTC(),
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (:id, :owner_id, :amount, :entry_date, :description, :category, :created_at)`, row)
	if err != nil {
		return r, false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return r, true, nil
}
