package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// CreateAccount inserts a new brokerage account
func (db *DB) CreateAccount(a *models.Account) error {
	query := `
		INSERT INTO accounts (
			user_id, broker, account_number, currency, enabled,
			default_lot_method, sync_status, connection_status,
			credentials_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`
	now := time.Now()
	if a.Currency == "" {
		a.Currency = "USD"
	}
	if a.DefaultLotMethod == "" {
		a.DefaultLotMethod = models.LotMethodFIFO
	}
	if a.SyncStatus == "" {
		a.SyncStatus = models.SyncStatusIdle
	}
	if a.ConnectionStatus == "" {
		a.ConnectionStatus = models.ConnectionConnected
	}

	err := db.conn.QueryRow(query,
		a.UserID, a.Broker, a.AccountNumber, a.Currency, a.Enabled,
		a.DefaultLotMethod, a.SyncStatus, a.ConnectionStatus,
		nullString(a.CredentialsToken), now,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetAccountByID retrieves an account by ID
func (db *DB) GetAccountByID(id int) (*models.Account, error) {
	query := accountSelect + ` WHERE id = $1`
	return db.scanSingleAccount(db.conn.QueryRow(query, id))
}

// GetAccountsByUserID retrieves all of a user's accounts
func (db *DB) GetAccountsByUserID(userID int) ([]*models.Account, error) {
	query := accountSelect + ` WHERE user_id = $1 ORDER BY id`
	return db.scanAccounts(db.conn.Query(query, userID))
}

// GetEnabledAccountsByUserID retrieves a user's sync-enabled accounts
func (db *DB) GetEnabledAccountsByUserID(userID int) ([]*models.Account, error) {
	query := accountSelect + ` WHERE user_id = $1 AND enabled = TRUE ORDER BY id`
	return db.scanAccounts(db.conn.Query(query, userID))
}

// MarkSyncStarted records a sync attempt on the account
func (db *DB) MarkSyncStarted(accountID int) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, last_sync_attempt = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return db.execAccountUpdate(query, accountID, models.SyncStatusRunning)
}

// MarkSyncSuccess records a successful sync and clears any error message
func (db *DB) MarkSyncSuccess(accountID int, status string) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, sync_error_message = NULL,
		    last_successful_sync = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return db.execAccountUpdate(query, accountID, status)
}

// MarkSyncError records a failed sync on the account. The account stays
// usable for the next attempt.
func (db *DB) MarkSyncError(accountID int, message string) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, sync_error_message = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := db.conn.Exec(query, accountID, models.SyncStatusError, message)
	if err != nil {
		return fmt.Errorf("failed to mark sync error: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %d", accountID)
	}
	return nil
}

// MarkSyncIdle returns the account to idle without touching the last
// successful sync, used when a report is not ready this cycle
func (db *DB) MarkSyncIdle(accountID int) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, updated_at = NOW()
		WHERE id = $1
	`
	return db.execAccountUpdate(query, accountID, models.SyncStatusIdle)
}

// MarkDisconnected records that the broker session is invalid
func (db *DB) MarkDisconnected(accountID int) error {
	query := `
		UPDATE accounts
		SET connection_status = $2, updated_at = NOW()
		WHERE id = $1
	`
	return db.execAccountUpdate(query, accountID, models.ConnectionDisconnected)
}

// UpdateAccountCredentials stores a new encrypted credentials token and
// restores the connection status
func (db *DB) UpdateAccountCredentials(accountID int, token string) error {
	query := `
		UPDATE accounts
		SET credentials_token = $2, connection_status = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := db.conn.Exec(query, accountID, token, models.ConnectionConnected)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %d", accountID)
	}
	return nil
}

const accountSelect = `
	SELECT id, user_id, broker, account_number, currency, enabled,
	       default_lot_method, sync_status, sync_error_message,
	       connection_status, credentials_token, last_sync_attempt,
	       last_successful_sync, created_at, updated_at
	FROM accounts
`

func (db *DB) execAccountUpdate(query string, accountID int, arg string) error {
	result, err := db.conn.Exec(query, accountID, arg)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %d", accountID)
	}
	return nil
}

func (db *DB) scanSingleAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var errorMessage, credentialsToken sql.NullString
	var lastSyncAttempt, lastSuccessfulSync sql.NullTime

	err := row.Scan(
		&a.ID, &a.UserID, &a.Broker, &a.AccountNumber, &a.Currency, &a.Enabled,
		&a.DefaultLotMethod, &a.SyncStatus, &errorMessage,
		&a.ConnectionStatus, &credentialsToken, &lastSyncAttempt,
		&lastSuccessfulSync, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	applyAccountNullables(&a, errorMessage, credentialsToken, lastSyncAttempt, lastSuccessfulSync)
	return &a, nil
}

func (db *DB) scanAccounts(rows *sql.Rows, err error) ([]*models.Account, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		var errorMessage, credentialsToken sql.NullString
		var lastSyncAttempt, lastSuccessfulSync sql.NullTime

		err := rows.Scan(
			&a.ID, &a.UserID, &a.Broker, &a.AccountNumber, &a.Currency, &a.Enabled,
			&a.DefaultLotMethod, &a.SyncStatus, &errorMessage,
			&a.ConnectionStatus, &credentialsToken, &lastSyncAttempt,
			&lastSuccessfulSync, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		applyAccountNullables(&a, errorMessage, credentialsToken, lastSyncAttempt, lastSuccessfulSync)
		accounts = append(accounts, &a)
	}

	return accounts, nil
}

func applyAccountNullables(a *models.Account, errorMessage, credentialsToken sql.NullString, lastSyncAttempt, lastSuccessfulSync sql.NullTime) {
	if errorMessage.Valid {
		a.SyncErrorMessage = errorMessage.String
	}
	if credentialsToken.Valid {
		a.CredentialsToken = credentialsToken.String
	}
	if lastSyncAttempt.Valid {
		a.LastSyncAttempt = &lastSyncAttempt.Time
	}
	if lastSuccessfulSync.Valid {
		a.LastSuccessfulSync = &lastSuccessfulSync.Time
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
