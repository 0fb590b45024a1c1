// Package store implements the durable, transactional event/balance/action
// /metadata store (spec §4.1). It is backed by SQLite in WAL journal mode
// through a pool of one connection, so the single writer (the Indexer) and
// the readers (the HTTP API) are serialized on that connection without
// external locking; reads do not run in parallel with each other or with an
// open write transaction. This follows the teacher's
// single-writer discipline (see core/ledger.go's WAL-backed Ledger) adapted
// here to an embedded relational engine instead of a bespoke log format.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "store")

// Store is the single point of serialization for all writes; callers outside
// the Indexer must treat it as read-only (spec §4.1).
type Store struct {
	db *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting every query
// helper below run either standalone or inside RunInTransaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens (creating if absent) the SQLite database at path, enables WAL
// journaling, and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer, many readers: one connection keeps SQLite's WAL writer
	// serialized without the application needing its own write mutex.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close checkpoints the WAL and closes the database (spec §6.4: on clean
// shutdown both sidecars are checkpointed).
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// RunInTransaction executes fn within a single SQLite transaction. All writes
// inside commit atomically or roll back; fn's error propagates.
func (s *Store) RunInTransaction(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{db: sqlTx}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("rollback after fn error")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tx is a Store transaction; see RunInTransaction.
type Tx struct {
	db *sql.Tx
}

// InsertEvent inserts ev, no-op on a duplicate (transaction_hash, log_index).
func (t *Tx) InsertEvent(ctx context.Context, ev Event) error {
	return insertEvent(ctx, t.db, ev)
}

// UpsertBalance overwrites the balance row for address atomically.
func (t *Tx) UpsertBalance(ctx context.Context, address, balance string, block, ts uint64) error {
	return upsertBalance(ctx, t.db, address, balance, block, ts)
}

// InsertCorporateAction appends a corporate-action row.
func (t *Tx) InsertCorporateAction(ctx context.Context, a CorporateAction) error {
	return insertCorporateAction(ctx, t.db, a)
}

// SetMetadata upserts a metadata key/value pair.
func (t *Tx) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ctx, t.db, key, value)
}

// GetMetadata reads a metadata value, "" and false if absent.
func (t *Tx) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return getMetadata(ctx, t.db, key)
}

// GetBalance reads a single balance row, ok=false if absent.
func (t *Tx) GetBalance(ctx context.Context, address string) (Balance, bool, error) {
	return getBalance(ctx, t.db, address)
}

// --- non-transactional Store methods. They share the pool's single
// connection, so while a RunInTransaction call is open they wait for it to
// finish. ---

// InsertEvent is the non-transactional form, used by tests and tools.
func (s *Store) InsertEvent(ctx context.Context, ev Event) error { return insertEvent(ctx, s.db, ev) }

// UpsertBalance is the non-transactional form.
func (s *Store) UpsertBalance(ctx context.Context, address, balance string, block, ts uint64) error {
	return upsertBalance(ctx, s.db, address, balance, block, ts)
}

// InsertCorporateAction is the non-transactional form.
func (s *Store) InsertCorporateAction(ctx context.Context, a CorporateAction) error {
	return insertCorporateAction(ctx, s.db, a)
}

// SetMetadata is the non-transactional form.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ctx, s.db, key, value)
}

// GetMetadata reads a metadata value, "" and false if absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return getMetadata(ctx, s.db, key)
}

// GetBalance reads a single balance row, ok=false if absent.
func (s *Store) GetBalance(ctx context.Context, address string) (Balance, bool, error) {
	return getBalance(ctx, s.db, address)
}

// GetAllBalances returns balances with balance > 0 sorted descending,
// truncated to limit (limit <= 0 means unlimited).
func (s *Store) GetAllBalances(ctx context.Context, limit int) ([]Balance, error) {
	return getAllBalances(ctx, s.db, limit)
}

// GetEventsByBlockRange returns events in [from, to], ascending (block_number, id).
func (s *Store) GetEventsByBlockRange(ctx context.Context, from, to uint64) ([]Event, error) {
	return getEventsByBlockRange(ctx, s.db, from, to)
}

// GetEventsByType returns events of the given type, descending (block_number, id).
func (s *Store) GetEventsByType(ctx context.Context, t EventType, limit int) ([]Event, error) {
	return getEventsByType(ctx, s.db, t, limit)
}

// GetEventsByAddress returns events where either side matches addr, descending.
func (s *Store) GetEventsByAddress(ctx context.Context, addr string, limit int) ([]Event, error) {
	return getEventsByAddress(ctx, s.db, addr, limit)
}

// GetRecentEvents returns the most recent events irrespective of type,
// descending (block_number, id), with an offset for pagination.
func (s *Store) GetRecentEvents(ctx context.Context, limit, offset int) ([]Event, error) {
	return getRecentEvents(ctx, s.db, limit, offset)
}

// GetCorporateActions returns corporate actions, optionally filtered by
// actionType (empty string means all), descending by block.
func (s *Store) GetCorporateActions(ctx context.Context, actionType ActionType, limit int) ([]CorporateAction, error) {
	return getCorporateActions(ctx, s.db, actionType, limit)
}

// LatestBlockNumber returns the highest block_number seen in events, 0 if none.
func (s *Store) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return latestBlockNumber(ctx, s.db)
}
