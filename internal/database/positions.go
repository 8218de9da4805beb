package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ReplaceAccountPositions transactionally replaces an account's aggregate
// positions. Positions are a materialized view over tax lots, rebuilt each
// sync rather than incrementally patched.
func (db *DB) ReplaceAccountPositions(accountID int, positions []*models.Position) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	query := `
		INSERT INTO positions (
			account_id, symbol, asset_category, quantity, average_cost,
			cost_basis, mark_price, market_value, unrealized_pnl, currency,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`
	now := time.Now()
	for _, p := range positions {
		err := tx.QueryRow(query,
			accountID, p.Symbol, p.AssetCategory, p.Quantity, p.AverageCost,
			p.CostBasis, p.MarkPrice, p.MarketValue, p.UnrealizedPnl, p.Currency, now,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert position for %s: %w", p.Symbol, err)
		}
		p.AccountID = accountID
		p.CreatedAt = now
		p.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions: %w", err)
	}
	return nil
}

// GetPositionsByAccount retrieves an account's positions ordered by symbol
func (db *DB) GetPositionsByAccount(accountID int) ([]*models.Position, error) {
	query := `
		SELECT id, account_id, symbol, asset_category, quantity, average_cost,
		       cost_basis, mark_price, market_value, unrealized_pnl, currency,
		       created_at, updated_at
		FROM positions
		WHERE account_id = $1
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		err := rows.Scan(
			&p.ID, &p.AccountID, &p.Symbol, &p.AssetCategory, &p.Quantity, &p.AverageCost,
			&p.CostBasis, &p.MarkPrice, &p.MarketValue, &p.UnrealizedPnl, &p.Currency,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	return positions, nil
}

// ReplaceAccountOptionPositions transactionally replaces an account's open
// option positions
func (db *DB) ReplaceAccountOptionPositions(accountID int, positions []*models.OptionPosition) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM option_positions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear option positions: %w", err)
	}

	query := `
		INSERT INTO option_positions (
			account_id, symbol, underlying, put_call, strike, expiry,
			quantity, cost_basis, mark_price, market_value, currency,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id
	`
	now := time.Now()
	for _, p := range positions {
		var expiry sql.NullTime
		if p.Expiry != nil {
			expiry = sql.NullTime{Time: *p.Expiry, Valid: true}
		}
		err := tx.QueryRow(query,
			accountID, p.Symbol, nullString(p.Underlying), nullString(p.PutCall),
			p.Strike, expiry, p.Quantity, p.CostBasis, p.MarkPrice, p.MarketValue,
			p.Currency, now,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert option position for %s: %w", p.Symbol, err)
		}
		p.AccountID = accountID
		p.CreatedAt = now
		p.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit option positions: %w", err)
	}
	return nil
}

// GetOptionPositionsByAccount retrieves an account's open option positions
func (db *DB) GetOptionPositionsByAccount(accountID int) ([]*models.OptionPosition, error) {
	query := `
		SELECT id, account_id, symbol, underlying, put_call, strike, expiry,
		       quantity, cost_basis, mark_price, market_value, currency,
		       created_at, updated_at
		FROM option_positions
		WHERE account_id = $1
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query option positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.OptionPosition
	for rows.Next() {
		var p models.OptionPosition
		var underlying, putCall sql.NullString
		var expiry sql.NullTime
		err := rows.Scan(
			&p.ID, &p.AccountID, &p.Symbol, &underlying, &putCall, &p.Strike, &expiry,
			&p.Quantity, &p.CostBasis, &p.MarkPrice, &p.MarketValue, &p.Currency,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option position: %w", err)
		}
		if underlying.Valid {
			p.Underlying = underlying.String
		}
		if putCall.Valid {
			p.PutCall = putCall.String
		}
		if expiry.Valid {
			p.Expiry = &expiry.Time
		}
		positions = append(positions, &p)
	}
	return positions, nil
}
