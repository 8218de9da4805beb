package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// InsertTrades inserts canonical trades, skipping rows whose
// (account_id, execution_id) already exists. Returns the number of newly
// inserted rows so re-syncs with unchanged upstream data report zero.
func (db *DB) InsertTrades(trades []*models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	query := `
		INSERT INTO trades (
			account_id, execution_id, order_id, symbol, side, asset_category,
			quantity, price, proceeds, commission, currency, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_id, execution_id) DO NOTHING
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
	for _, t := range trades {
		result, err := stmt.Exec(
			t.AccountID, t.ExecutionID, nullString(t.OrderID), t.Symbol, t.Side,
			t.AssetCategory, t.Quantity, t.Price, t.Proceeds, t.Commission,
			t.Currency, t.ExecutedAt, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trade %s: %w", t.ExecutionID, err)
		}
		rowsAffected, _ := result.RowsAffected()
		inserted += int(rowsAffected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trades: %w", err)
	}
	return inserted, nil
}

// GetTradesByAccount retrieves an account's trades in chronological order,
// the order the tax lot engine replays them in
func (db *DB) GetTradesByAccount(accountID int) ([]*models.Trade, error) {
	query := tradeSelect + `
		WHERE account_id = $1
		ORDER BY executed_at ASC, execution_id ASC
	`
	return db.scanTrades(db.conn.Query(query, accountID))
}

// GetTradesByAccountSymbol retrieves an account's trades for one symbol in
// chronological order
func (db *DB) GetTradesByAccountSymbol(accountID int, symbol string) ([]*models.Trade, error) {
	query := tradeSelect + `
		WHERE account_id = $1 AND symbol = $2
		ORDER BY executed_at ASC, execution_id ASC
	`
	return db.scanTrades(db.conn.Query(query, accountID, symbol))
}

// TradeExistsByExecutionID checks whether a trade was already ingested
func (db *DB) TradeExistsByExecutionID(accountID int, executionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trades WHERE account_id = $1 AND execution_id = $2)`
	var exists bool
	err := db.conn.QueryRow(query, accountID, executionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return exists, nil
}

// CountTradesByAccount returns the number of persisted trades
func (db *DB) CountTradesByAccount(accountID int) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM trades WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

const tradeSelect = `
	SELECT id, account_id, execution_id, order_id, symbol, side, asset_category,
	       quantity, price, proceeds, commission, currency, executed_at, created_at
	FROM trades
`

func (db *DB) scanTrades(rows *sql.Rows, err error) ([]*models.Trade, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		var orderID sql.NullString

		err := rows.Scan(
			&t.ID, &t.AccountID, &t.ExecutionID, &orderID, &t.Symbol, &t.Side,
			&t.AssetCategory, &t.Quantity, &t.Price, &t.Proceeds, &t.Commission,
			&t.Currency, &t.ExecutedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if orderID.Valid {
			t.OrderID = orderID.String
		}
		trades = append(trades, &t)
	}

	return trades, nil
}
