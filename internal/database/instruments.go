package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// UpsertInstruments inserts instruments seen in an account's activity,
// skipping symbols already recorded. Returns the number of new rows.
func (db *DB) UpsertInstruments(instruments []*models.Instrument) (int, error) {
	if len(instruments) == 0 {
		return 0, nil
	}
	query := `
		INSERT INTO instruments (account_id, symbol, description, asset_category, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, symbol) DO NOTHING
	`
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	inserted := 0
	for _, ins := range instruments {
		result, err := stmt.Exec(ins.AccountID, ins.Symbol, nullString(ins.Description), ins.AssetCategory, ins.Currency, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert instrument %s: %w", ins.Symbol, err)
		}
		rowsAffected, _ := result.RowsAffected()
		inserted += int(rowsAffected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit instruments: %w", err)
	}
	return inserted, nil
}

// GetInstrumentsByAccount retrieves an account's instruments ordered by
// symbol
func (db *DB) GetInstrumentsByAccount(accountID int) ([]*models.Instrument, error) {
	query := `
		SELECT id, account_id, symbol, description, asset_category, currency, created_at
		FROM instruments
		WHERE account_id = $1
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		var ins models.Instrument
		var description sql.NullString
		if err := rows.Scan(&ins.ID, &ins.AccountID, &ins.Symbol, &description, &ins.AssetCategory, &ins.Currency, &ins.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		if description.Valid {
			ins.Description = description.String
		}
		instruments = append(instruments, &ins)
	}
	return instruments, nil
}
