package store

import (
	"context"
	"database/sql"
	"fmt"
)

func insertEvent(ctx context.Context, ex execer, ev Event) error {
	if ev.Data == "" {
		ev.Data = "{}"
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO events
			(block_number, transaction_hash, log_index, event_type, from_address,
			 to_address, amount, data, gas_used, gas_price, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_hash, log_index) DO NOTHING
	`, ev.BlockNumber, ev.TransactionHash, ev.LogIndex, string(ev.EventType), ev.FromAddress,
		ev.ToAddress, ev.Amount, ev.Data, ev.GasUsed, ev.GasPrice, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func upsertBalance(ctx context.Context, ex execer, address, balance string, block, ts uint64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO balances (address, balance, last_updated_block, last_updated_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			balance = excluded.balance,
			last_updated_block = excluded.last_updated_block,
			last_updated_ts = excluded.last_updated_ts
	`, address, balance, block, ts)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func insertCorporateAction(ctx context.Context, ex execer, a CorporateAction) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO corporate_actions
			(action_type, block_number, transaction_hash, old_value, new_value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(a.ActionType), a.BlockNumber, a.TransactionHash, a.OldValue, a.NewValue, a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert corporate action: %w", err)
	}
	return nil
}

func setMetadata(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func getMetadata(ctx context.Context, ex execer, key string) (string, bool, error) {
	var value string
	err := ex.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, true, nil
}

func getBalance(ctx context.Context, ex execer, address string) (Balance, bool, error) {
	var b Balance
	err := ex.QueryRowContext(ctx, `
		SELECT address, balance, last_updated_block, last_updated_ts
		FROM balances WHERE address = ?
	`, address).Scan(&b.Address, &b.Balance, &b.LastUpdatedBlock, &b.LastUpdatedTimestamp)
	if err == sql.ErrNoRows {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, fmt.Errorf("get balance %s: %w", address, err)
	}
	return b, true, nil
}

func getAllBalances(ctx context.Context, ex execer, limit int) ([]Balance, error) {
	// balance is a decimal string with no leading zeros (by construction), so
	// comparing length then lexicographic order gives correct numeric
	// ordering even for values that overflow SQLite's 64-bit INTEGER.
	query := `
		SELECT address, balance, last_updated_block, last_updated_ts
		FROM balances
		WHERE balance != '0'
		ORDER BY length(balance) DESC, balance DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get all balances: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.Address, &b.Balance, &b.LastUpdatedBlock, &b.LastUpdatedTimestamp); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func getEventsByBlockRange(ctx context.Context, ex execer, from, to uint64) ([]Event, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE block_number BETWEEN ? AND ?
		ORDER BY block_number ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("get events by block range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func getEventsByType(ctx context.Context, ex execer, t EventType, limit int) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE event_type = ?
		ORDER BY block_number DESC, id DESC
	`
	args := []interface{}{string(t)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events by type: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func getEventsByAddress(ctx context.Context, ex execer, addr string, limit int) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE from_address = ?1 OR to_address = ?1
		ORDER BY block_number DESC, id DESC
	`
	args := []interface{}{addr}
	if limit > 0 {
		query += ` LIMIT ?2`
		args = append(args, limit)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events by address: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func getRecentEvents(ctx context.Context, ex execer, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := ex.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY block_number DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func getCorporateActions(ctx context.Context, ex execer, actionType ActionType, limit int) ([]CorporateAction, error) {
	query := `
		SELECT id, action_type, block_number, transaction_hash, old_value, new_value, timestamp
		FROM corporate_actions
	`
	var args []interface{}
	if actionType != "" {
		query += ` WHERE action_type = ?`
		args = append(args, string(actionType))
	}
	query += ` ORDER BY block_number DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get corporate actions: %w", err)
	}
	defer rows.Close()

	var out []CorporateAction
	for rows.Next() {
		var a CorporateAction
		if err := rows.Scan(&a.ID, &a.ActionType, &a.BlockNumber, &a.TransactionHash,
			&a.OldValue, &a.NewValue, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan corporate action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func latestBlockNumber(ctx context.Context, ex execer) (uint64, error) {
	var n sql.NullInt64
	err := ex.QueryRowContext(ctx, `SELECT MAX(block_number) FROM events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("latest block number: %w", err)
	}
	if !n.Valid {
		return 0, nil
	}
	return uint64(n.Int64), nil
}

const eventColumns = `id, block_number, transaction_hash, log_index, event_type,
	from_address, to_address, amount, data, gas_used, gas_price, timestamp`

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var evType string
		if err := rows.Scan(&ev.ID, &ev.BlockNumber, &ev.TransactionHash, &ev.LogIndex, &evType,
			&ev.FromAddress, &ev.ToAddress, &ev.Amount, &ev.Data, &ev.GasUsed, &ev.GasPrice, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.EventType = EventType(evType)
		out = append(out, ev)
	}
	return out, rows.Err()
}
