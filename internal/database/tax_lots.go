package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ReplaceAccountTaxLots transactionally replaces an account's tax lots
// with the given set. Callers must not invoke this with an empty set when
// upstream returned no data; an empty upstream result must never wipe
// existing lots.
func (db *DB) ReplaceAccountTaxLots(accountID int, lots []*models.TaxLot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tax_lots WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear tax lots: %w", err)
	}

	query := `
		INSERT INTO tax_lots (
			account_id, symbol, asset_category, acquisition_date,
			original_quantity, remaining_quantity, cost_per_unit, cost_basis,
			currency, source, trade_id, needs_review, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id
	`
	now := time.Now()
	for _, l := range lots {
		var tradeID sql.NullInt64
		if l.TradeID != nil {
			tradeID = sql.NullInt64{Int64: int64(*l.TradeID), Valid: true}
		}
		err := tx.QueryRow(query,
			accountID, l.Symbol, l.AssetCategory, l.AcquisitionDate,
			l.OriginalQuantity, l.RemainingQuantity, l.CostPerUnit, l.CostBasis,
			l.Currency, l.Source, tradeID, l.NeedsReview, now,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to insert tax lot for %s: %w", l.Symbol, err)
		}
		l.AccountID = accountID
		l.CreatedAt = now
		l.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tax lots: %w", err)
	}
	return nil
}

// GetOpenLotsByAccount retrieves all lots with remaining quantity, ordered
// by symbol and acquisition date
func (db *DB) GetOpenLotsByAccount(accountID int) ([]*models.TaxLot, error) {
	query := taxLotSelect + `
		WHERE account_id = $1 AND remaining_quantity > 0
		ORDER BY symbol ASC, acquisition_date ASC, id ASC
	`
	return db.scanTaxLots(db.conn.Query(query, accountID))
}

// GetOpenLotsByAccountSymbol retrieves a symbol's open lots in acquisition
// order
func (db *DB) GetOpenLotsByAccountSymbol(accountID int, symbol string) ([]*models.TaxLot, error) {
	query := taxLotSelect + `
		WHERE account_id = $1 AND symbol = $2 AND remaining_quantity > 0
		ORDER BY acquisition_date ASC, id ASC
	`
	return db.scanTaxLots(db.conn.Query(query, accountID, symbol))
}

// UpdateTaxLotQuantities persists new remaining quantities after an
// executed sale, all lots in one transaction
func (db *DB) UpdateTaxLotQuantities(lots []*models.TaxLot) error {
	if len(lots) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE tax_lots
		SET remaining_quantity = $2, cost_basis = $3, updated_at = NOW()
		WHERE id = $1
	`
	for _, l := range lots {
		result, err := tx.Exec(query, l.ID, l.RemainingQuantity, l.CostBasis)
		if err != nil {
			return fmt.Errorf("failed to update tax lot %d: %w", l.ID, err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return fmt.Errorf("tax lot not found: %d", l.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tax lot updates: %w", err)
	}
	return nil
}

const taxLotSelect = `
	SELECT id, account_id, symbol, asset_category, acquisition_date,
	       original_quantity, remaining_quantity, cost_per_unit, cost_basis,
	       currency, source, trade_id, needs_review, created_at, updated_at
	FROM tax_lots
`

func (db *DB) scanTaxLots(rows *sql.Rows, err error) ([]*models.TaxLot, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query tax lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.TaxLot
	for rows.Next() {
		var l models.TaxLot
		var tradeID sql.NullInt64

		err := rows.Scan(
			&l.ID, &l.AccountID, &l.Symbol, &l.AssetCategory, &l.AcquisitionDate,
			&l.OriginalQuantity, &l.RemainingQuantity, &l.CostPerUnit, &l.CostBasis,
			&l.Currency, &l.Source, &tradeID, &l.NeedsReview, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax lot: %w", err)
		}
		if tradeID.Valid {
			id := int(tradeID.Int64)
			l.TradeID = &id
		}
		lots = append(lots, &l)
	}

	return lots, nil
}
