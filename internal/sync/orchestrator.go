package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-ledger/internal/flexquery"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/taxlot"
)

// Publisher emits sync results to downstream consumers. Nil publishers are
// allowed; results are then only persisted on the account row.
type Publisher interface {
	PublishSyncResult(ctx context.Context, result *models.SyncResult) error
}

// Orchestrator routes sync requests to the broker's adapter and records
// the outcome on the account.
type Orchestrator struct {
	store          Store
	adapters       map[string]Adapter
	publisher      Publisher
	timeout        time.Duration
	maxConcurrency int
}

// NewOrchestrator creates an orchestrator. adapters maps broker constants
// to their Adapter; publisher may be nil.
func NewOrchestrator(store Store, adapters map[string]Adapter, publisher Publisher, timeout time.Duration, maxConcurrency int) *Orchestrator {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Orchestrator{
		store:          store,
		adapters:       adapters,
		publisher:      publisher,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
	}
}

// SyncAccount runs one full sync for an account. The returned result is
// always non-nil and its status is one of success, partial, not_ready or
// error. Re-running a sync over the same period is safe: trades and cash
// transactions dedupe on their external IDs and derived tables are
// rebuilt in place.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID int) (*models.SyncResult, error) {
	result := &models.SyncResult{
		SyncID:    uuid.New().String(),
		AccountID: accountID,
		StartedAt: time.Now().UTC(),
	}

	account, err := o.store.GetAccountByID(accountID)
	if err != nil {
		return o.finish(ctx, result, models.SyncResultError, fmt.Errorf("failed to load account: %w", err))
	}
	if !account.Enabled {
		return o.finish(ctx, result, models.SyncResultError, fmt.Errorf("account %d is disabled", accountID))
	}
	adapter, ok := o.adapters[account.Broker]
	if !ok {
		return o.finish(ctx, result, models.SyncResultError, fmt.Errorf("no adapter for broker %s", account.Broker))
	}

	if err := o.store.MarkSyncStarted(accountID); err != nil {
		return o.finish(ctx, result, models.SyncResultError, fmt.Errorf("failed to mark sync started: %w", err))
	}

	syncCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	log.Printf("sync: starting %s for account %d (%s)", result.SyncID, accountID, account.Broker)
	adapterResult, err := adapter.Sync(syncCtx, account)
	if err != nil {
		switch {
		case errors.Is(err, flexquery.ErrReportUnavailable):
			// The broker has not finished generating the report. Not an
			// account fault; the next cycle retries.
			if markErr := o.store.MarkSyncIdle(accountID); markErr != nil {
				log.Printf("sync: failed to mark account %d idle: %v", accountID, markErr)
			}
			return o.finish(ctx, result, models.SyncResultNotReady, err)
		case errors.Is(err, ErrUpstreamAuth):
			if markErr := o.store.MarkDisconnected(accountID); markErr != nil {
				log.Printf("sync: failed to mark account %d disconnected: %v", accountID, markErr)
			}
			o.markError(accountID, err)
			return o.finish(ctx, result, models.SyncResultError, err)
		default:
			o.markError(accountID, err)
			return o.finish(ctx, result, models.SyncResultError, err)
		}
	}

	result.Steps = adapterResult.Steps
	if failed := result.FailedSteps(); len(failed) > 0 {
		log.Printf("sync: account %d finished with failed steps: %s", accountID, strings.Join(failed, ", "))
		if err := o.store.MarkSyncSuccess(accountID, models.SyncStatusPartial); err != nil {
			log.Printf("sync: failed to mark account %d partial: %v", accountID, err)
		}
		return o.finish(ctx, result, models.SyncResultPartial, nil)
	}
	if err := o.store.MarkSyncSuccess(accountID, models.SyncStatusSuccess); err != nil {
		log.Printf("sync: failed to mark account %d success: %v", accountID, err)
	}
	return o.finish(ctx, result, models.SyncResultSuccess, nil)
}

// SyncAllAccounts syncs every enabled account of a user with bounded
// concurrency. One account's failure never blocks the others.
func (o *Orchestrator) SyncAllAccounts(ctx context.Context, userID int) ([]*models.SyncResult, error) {
	accounts, err := o.store.GetEnabledAccountsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	sem := make(chan struct{}, o.maxConcurrency)
	results := make([]*models.SyncResult, len(accounts))
	done := make(chan int, len(accounts))
	for i, account := range accounts {
		go func(i int, accountID int) {
			sem <- struct{}{}
			defer func() { <-sem }()
			result, err := o.SyncAccount(ctx, accountID)
			if err != nil {
				log.Printf("sync: account %d failed: %v", accountID, err)
			}
			results[i] = result
			done <- i
		}(i, account.ID)
	}
	for range accounts {
		<-done
	}
	return results, nil
}

// PreviewSale simulates selling quantity shares of symbol without mutating
// any lots. An empty method falls back to the account's default.
func (o *Orchestrator) PreviewSale(ctx context.Context, accountID int, symbol, method string, quantity, salePrice decimal.Decimal, saleDate time.Time) (*models.SaleResult, error) {
	lots, method, err := o.saleInputs(accountID, symbol, method)
	if err != nil {
		return nil, err
	}
	return taxlot.Plan(lots, method, symbol, quantity, salePrice, saleDate)
}

// ExecuteSale allocates a sale against the account's open lots and
// persists the depleted remaining quantities.
func (o *Orchestrator) ExecuteSale(ctx context.Context, accountID int, symbol, method string, quantity, salePrice decimal.Decimal, saleDate time.Time) (*models.SaleResult, error) {
	lots, method, err := o.saleInputs(accountID, symbol, method)
	if err != nil {
		return nil, err
	}
	result, err := taxlot.Execute(lots, method, symbol, quantity, salePrice, saleDate)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateTaxLotQuantities(lots); err != nil {
		return nil, fmt.Errorf("failed to persist lot depletion: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) saleInputs(accountID int, symbol, method string) ([]*models.TaxLot, string, error) {
	account, err := o.store.GetAccountByID(accountID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load account: %w", err)
	}
	if method == "" {
		method = account.DefaultLotMethod
	}
	if method == "" {
		method = models.LotMethodFIFO
	}
	lots, err := o.store.GetOpenLotsByAccountSymbol(accountID, symbol)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load open lots: %w", err)
	}
	return lots, method, nil
}

func (o *Orchestrator) markError(accountID int, err error) {
	if markErr := o.store.MarkSyncError(accountID, err.Error()); markErr != nil {
		log.Printf("sync: failed to mark account %d errored: %v", accountID, markErr)
	}
}

// finish stamps the result, publishes it and returns it. The error passed
// in is recorded on the result and returned for error statuses only.
func (o *Orchestrator) finish(ctx context.Context, result *models.SyncResult, status string, err error) (*models.SyncResult, error) {
	result.Status = status
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		result.Error = err.Error()
	}
	if o.publisher != nil {
		if pubErr := o.publisher.PublishSyncResult(ctx, result); pubErr != nil {
			log.Printf("sync: failed to publish result for account %d: %v", result.AccountID, pubErr)
		}
	}
	if status == models.SyncResultError {
		return result, err
	}
	return result, nil
}
