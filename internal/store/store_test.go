package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"ledgerflow/internal/record"
	"ledgerflow/internal/reconcile"
)

var (
	_ reconcile.LedgerStore = (*MemStore)(nil)
	_ reconcile.LedgerStore = (*SqlStore)(nil)
)

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// eqDecimal compares amounts by value so "5.0" equals "5".
var eqDecimal = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func seed() []record.Record {
	return []record.Record{
		{SourceID: "e2", Amount: amount("42.10"), Date: "2026-02-10", Description: "taxi", Category: "travel"},
		{SourceID: "e1", Amount: amount("500"), Date: "2026-02-08", Description: "lunch"},
		{SourceID: "e3", Amount: amount("9.99"), Description: "subscription"},
		{SourceID: "e4", Amount: amount("120"), Date: "2026-03-01", Description: "hotel"},
	}
}

// eachStore runs fn against a MemStore and a file-backed SqlStore.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "ledger.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_ImportAndFetch(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n, err := s.Import(ctx, "u1", seed())
		if err != nil || n != 4 {
			t.Fatalf("Import = %d, %v", n, err)
		}
		n, err = s.Import(ctx, "u1", seed()[:2])
		if err != nil || n != 0 {
			t.Fatalf("re-Import = %d, %v; want 0 duplicates inserted", n, err)
		}

		got, err := s.Fetch(ctx, record.Filter{OwnerID: "u1"})
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		var ids []string
		for _, r := range got {
			ids = append(ids, r.SourceID)
		}
		// undated entries sort first
		if diff := cmp.Diff([]string{"e3", "e1", "e2", "e4"}, ids); diff != "" {
			t.Errorf("order (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(seed()[0], got[2], eqDecimal); diff != "" {
			t.Errorf("round trip (-want +got):\n%s", diff)
		}

		other, err := s.Fetch(ctx, record.Filter{OwnerID: "u2"})
		if err != nil || len(other) != 0 {
			t.Errorf("other owner sees %d entries, err %v", len(other), err)
		}
	})
}

func TestStore_FetchFilter(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Import(ctx, "u1", seed()); err != nil {
			t.Fatal(err)
		}
		got, err := s.Fetch(ctx, record.Filter{OwnerID: "u1", From: "2026-02-09", To: "2026-02-28"})
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, r := range got {
			ids = append(ids, r.SourceID)
		}
		if diff := cmp.Diff([]string{"e3", "e2"}, ids); diff != "" {
			t.Errorf("filtered (-want +got):\n%s", diff)
		}

		limited, err := s.Fetch(ctx, record.Filter{OwnerID: "u1", Limit: 2})
		if err != nil || len(limited) != 2 {
			t.Errorf("limit: got %d, err %v", len(limited), err)
		}
	})
}

func TestStore_CreateAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "u1", record.Record{Amount: amount("15.5"), Date: "2026-02-09", Description: "coffee"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.SourceID == "" {
			t.Fatal("Create did not assign an id")
		}
		got, err := s.Get(ctx, "u1", created.SourceID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff(created, got, eqDecimal); diff != "" {
			t.Errorf("Get (-want +got):\n%s", diff)
		}

		if _, err := s.Create(ctx, "u1", created); !errors.Is(err, ErrDuplicate) {
			t.Errorf("duplicate Create err = %v, want ErrDuplicate", err)
		}
		if _, err := s.Get(ctx, "u2", created.SourceID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get other owner err = %v, want ErrNotFound", err)
		}
		if _, err := s.Create(ctx, "", created); !errors.Is(err, ErrNoOwner) {
			t.Errorf("Create without owner err = %v, want ErrNoOwner", err)
		}
		if _, err := s.Fetch(ctx, record.Filter{}); !errors.Is(err, ErrNoOwner) {
			t.Errorf("Fetch without owner err = %v, want ErrNoOwner", err)
		}
	})
}

func TestSqlStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Import(context.Background(), "u1", seed()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Fetch(context.Background(), record.Filter{OwnerID: "u1"})
	if err != nil || len(got) != 4 {
		t.Errorf("after reopen: %d entries, err %v", len(got), err)
	}
}

func TestSqlStore_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sqlx.Connect(DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	db.MustExec(schemaVersionTable)
	db.MustExec(schemaV1)
	db.MustExec("INSERT INTO schema_version(version) VALUES(1)")
	db.MustExec(`INSERT INTO ledger_entries (id, owner_id, amount, entry_date, description, created_at)
		VALUES ('old', 'u1', '7.25', '2026-01-05', 'legacy', '2026-01-05T00:00:00Z')`)
	db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	defer s.Close()
	v, err := s.SchemaVersion()
	if err != nil || v != currentSchemaVersion {
		t.Fatalf("schema version = %d, %v; want %d", v, err, currentSchemaVersion)
	}
	got, err := s.Get(context.Background(), "u1", "old")
	if err != nil {
		t.Fatal(err)
	}
	want := record.Record{SourceID: "old", Amount: amount("7.25"), Date: "2026-01-05", Description: "legacy"}
	if diff := cmp.Diff(want, got, eqDecimal); diff != "" {
		t.Errorf("migrated row (-want +got):\n%s", diff)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Error("unknown driver accepted")
	}
}
