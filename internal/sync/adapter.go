// Package sync orchestrates account data ingestion. One sync pulls an
// account's activity from its broker, normalizes it into canonical models
// and persists it step by step. Steps run in dependency order and a step
// failure never aborts the remaining steps.
package sync

import (
	"context"
	"errors"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ErrUpstreamAuth indicates the broker rejected the stored session
// credentials. The account is marked disconnected and skipped until the
// user re-links it.
var ErrUpstreamAuth = errors.New("broker rejected stored credentials")

// Store is the persistence surface adapters and the orchestrator need.
// *database.DB satisfies it.
type Store interface {
	GetAccountByID(id int) (*models.Account, error)
	GetEnabledAccountsByUserID(userID int) ([]*models.Account, error)
	MarkSyncStarted(accountID int) error
	MarkSyncSuccess(accountID int, status string) error
	MarkSyncIdle(accountID int) error
	MarkSyncError(accountID int, message string) error
	MarkDisconnected(accountID int) error

	UpsertInstruments(instruments []*models.Instrument) (int, error)
	InsertTrades(trades []*models.Trade) (int, error)
	GetTradesByAccount(accountID int) ([]*models.Trade, error)
	InsertCashTransactions(transactions []*models.CashTransaction) (int, error)
	ReplaceAccountTaxLots(accountID int, lots []*models.TaxLot) error
	GetOpenLotsByAccount(accountID int) ([]*models.TaxLot, error)
	GetOpenLotsByAccountSymbol(accountID int, symbol string) ([]*models.TaxLot, error)
	UpdateTaxLotQuantities(lots []*models.TaxLot) error
	ReplaceAccountPositions(accountID int, positions []*models.Position) error
	ReplaceAccountOptionPositions(accountID int, positions []*models.OptionPosition) error
	ReplaceAccountBalances(accountID int, balances []*models.AccountBalance) error
	InsertSnapshot(s *models.AccountSnapshot) error
}

// Adapter pulls one account's data from its broker and persists it. The
// returned result carries per-step outcomes; the error return is reserved
// for failures that prevent any step from running at all.
type Adapter interface {
	Sync(ctx context.Context, account *models.Account) (*models.SyncResult, error)
}
