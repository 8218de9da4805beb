package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// InsertCashTransactions inserts cash movements, skipping rows whose
// (account_id, external_id) already exists. Returns the number of newly
// inserted rows.
func (db *DB) InsertCashTransactions(transactions []*models.CashTransaction) (int, error) {
	if len(transactions) == 0 {
		return 0, nil
	}
	query := `
		INSERT INTO cash_transactions (
			account_id, external_id, type, symbol, description,
			amount, net_amount, currency, transaction_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, external_id) DO NOTHING
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
	for _, c := range transactions {
		result, err := stmt.Exec(
			c.AccountID, c.ExternalID, c.Type, nullString(c.Symbol),
			nullString(c.Description), c.Amount, c.NetAmount, c.Currency,
			c.TransactionDate, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert cash transaction %s: %w", c.ExternalID, err)
		}
		rowsAffected, _ := result.RowsAffected()
		inserted += int(rowsAffected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cash transactions: %w", err)
	}
	return inserted, nil
}

// GetCashTransactionsByAccount retrieves an account's cash movements,
// most recent first
func (db *DB) GetCashTransactionsByAccount(accountID int, limit int) ([]*models.CashTransaction, error) {
	query := cashTransactionSelect + `
		WHERE account_id = $1
		ORDER BY transaction_date DESC
		LIMIT $2
	`
	return db.scanCashTransactions(db.conn.Query(query, accountID, limit))
}

// GetDividendsByAccount retrieves the dividend read-model: cash
// transactions typed as dividends or payments in lieu
func (db *DB) GetDividendsByAccount(accountID int) ([]*models.Dividend, error) {
	query := `
		SELECT symbol, amount, net_amount, currency, transaction_date
		FROM cash_transactions
		WHERE account_id = $1 AND type IN ($2, $3)
		ORDER BY transaction_date DESC
	`
	rows, err := db.conn.Query(query, accountID, models.CashTypeDividend, models.CashTypePaymentInLieu)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var dividends []*models.Dividend
	for rows.Next() {
		var d models.Dividend
		var symbol sql.NullString
		if err := rows.Scan(&symbol, &d.Amount, &d.NetAmount, &d.Currency, &d.PaymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		if symbol.Valid {
			d.Symbol = symbol.String
		}
		dividends = append(dividends, &d)
	}
	return dividends, nil
}

// CountCashTransactionsByAccount returns the number of persisted cash
// transactions
func (db *DB) CountCashTransactionsByAccount(accountID int) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM cash_transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cash transactions: %w", err)
	}
	return count, nil
}

const cashTransactionSelect = `
	SELECT id, account_id, external_id, type, symbol, description,
	       amount, net_amount, currency, transaction_date, created_at
	FROM cash_transactions
`

func (db *DB) scanCashTransactions(rows *sql.Rows, err error) ([]*models.CashTransaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query cash transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.CashTransaction
	for rows.Next() {
		var c models.CashTransaction
		var symbol, description sql.NullString

		err := rows.Scan(
			&c.ID, &c.AccountID, &c.ExternalID, &c.Type, &symbol, &description,
			&c.Amount, &c.NetAmount, &c.Currency, &c.TransactionDate, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash transaction: %w", err)
		}
		if symbol.Valid {
			c.Symbol = symbol.String
		}
		if description.Valid {
			c.Description = description.String
		}
		transactions = append(transactions, &c)
	}

	return transactions, nil
}
