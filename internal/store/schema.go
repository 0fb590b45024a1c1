package store

// schema is applied with CREATE TABLE IF NOT EXISTS on every Open, following
// the teacher's preference (core/storage.go's diskLRU) for a small
// dependency-light persistence helper over a migration framework — there is
// exactly one schema version, so a migration tool would buy nothing here.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	block_number      INTEGER NOT NULL,
	transaction_hash  TEXT NOT NULL,
	log_index         INTEGER NOT NULL,
	event_type        TEXT NOT NULL,
	from_address      TEXT,
	to_address        TEXT,
	amount            TEXT,
	data              TEXT NOT NULL DEFAULT '{}',
	gas_used          TEXT,
	gas_price         TEXT,
	timestamp         INTEGER NOT NULL,
	UNIQUE(transaction_hash, log_index)
);
CREATE INDEX IF NOT EXISTS idx_events_block ON events(block_number, id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type, block_number, id);
CREATE INDEX IF NOT EXISTS idx_events_from ON events(from_address);
CREATE INDEX IF NOT EXISTS idx_events_to ON events(to_address);

CREATE TABLE IF NOT EXISTS balances (
	address              TEXT PRIMARY KEY,
	balance              TEXT NOT NULL,
	last_updated_block   INTEGER NOT NULL,
	last_updated_ts      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_balances_balance ON balances(balance);

CREATE TABLE IF NOT EXISTS corporate_actions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	action_type       TEXT NOT NULL,
	block_number      INTEGER NOT NULL,
	transaction_hash  TEXT NOT NULL,
	old_value         TEXT NOT NULL,
	new_value         TEXT NOT NULL,
	timestamp         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_block ON corporate_actions(block_number DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_actions_type ON corporate_actions(action_type, block_number DESC);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
