package store

// schemaVersionV1 is the original ledger schema without categories.
const schemaVersionV1 = 1

// schemaVersionV2 adds the category column.
const schemaVersionV2 = 2

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

const schemaVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`

// schemaV1 is kept for migration tests.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id          TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	amount      TEXT NOT NULL,
	entry_date  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	PRIMARY KEY (owner_id, id)
);
CREATE INDEX IF NOT EXISTS idx_ledger_owner_date ON ledger_entries(owner_id, entry_date);
`

// schemaV2 is the fresh-install DDL. It is portable between SQLite and
// PostgreSQL: amounts are stored as decimal strings and dates as
// YYYY-MM-DD text, empty when unknown.
var schemaV2 = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id          TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	amount      TEXT NOT NULL,
	entry_date  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	PRIMARY KEY (owner_id, id)
);
CREATE INDEX IF NOT EXISTS idx_ledger_owner_date ON ledger_entries(owner_id, entry_date);
`

var migrationV1ToV2 = `
ALTER TABLE ledger_entries ADD COLUMN category TEXT NOT NULL DEFAULT '';
UPDATE schema_version SET version = 2;
`
