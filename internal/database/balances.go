package database

import (
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ReplaceAccountBalances transactionally replaces an account's per-currency
// cash balances
func (db *DB) ReplaceAccountBalances(accountID int, balances []*models.AccountBalance) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM account_balances WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}

	query := `
		INSERT INTO account_balances (account_id, currency, cash, report_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	now := time.Now()
	for _, b := range balances {
		err := tx.QueryRow(query, accountID, b.Currency, b.Cash, b.ReportDate, now).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert balance for %s: %w", b.Currency, err)
		}
		b.AccountID = accountID
		b.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit balances: %w", err)
	}
	return nil
}

// GetBalancesByAccount retrieves an account's cash balances
func (db *DB) GetBalancesByAccount(accountID int) ([]*models.AccountBalance, error) {
	query := `
		SELECT id, account_id, currency, cash, report_date, created_at
		FROM account_balances
		WHERE account_id = $1
		ORDER BY currency ASC
	`
	rows, err := db.conn.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.AccountBalance
	for rows.Next() {
		var b models.AccountBalance
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Currency, &b.Cash, &b.ReportDate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, &b)
	}
	return balances, nil
}

// InsertSnapshot appends an account value snapshot
func (db *DB) InsertSnapshot(s *models.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots (account_id, total_value, cash_value, position_value, currency, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	takenAt := s.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	err := db.conn.QueryRow(query, s.AccountID, s.TotalValue, s.CashValue, s.PositionValue, s.Currency, takenAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	s.TakenAt = takenAt
	return nil
}

// GetSnapshotsByAccount retrieves an account's value history, most recent
// first
func (db *DB) GetSnapshotsByAccount(accountID int, limit int) ([]*models.AccountSnapshot, error) {
	query := `
		SELECT id, account_id, total_value, cash_value, position_value, currency, taken_at
		FROM account_snapshots
		WHERE account_id = $1
		ORDER BY taken_at DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.AccountSnapshot
	for rows.Next() {
		var s models.AccountSnapshot
		if err := rows.Scan(&s.ID, &s.AccountID, &s.TotalValue, &s.CashValue, &s.PositionValue, &s.Currency, &s.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, nil
}
