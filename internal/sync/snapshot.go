package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/secrets"
	"github.com/trogers1052/portfolio-ledger/internal/taxlot"
)

// Live transaction type constants used by snapshot-style broker APIs.
const (
	liveTypeTrade    = "trade"
	liveTypeDividend = "dividend"
)

// LivePosition is one open position as reported by a live broker API.
type LivePosition struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	LastPrice   decimal.Decimal `json:"last_price"`
	Currency    string          `json:"currency"`
}

// LiveTransaction is one settled transaction as reported by a live broker
// API. Trades carry side/quantity/price; dividends carry amount.
type LiveTransaction struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Side       string          `json:"side,omitempty"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Fees       decimal.Decimal `json:"fees,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	Currency   string          `json:"currency"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// LiveBalance is one per-currency cash balance from a live broker API.
type LiveBalance struct {
	Currency string          `json:"currency"`
	Cash     decimal.Decimal `json:"cash"`
}

// LiveClient is the live broker API surface the snapshot adapter consumes.
type LiveClient interface {
	GetPositions(ctx context.Context, sessionToken string) ([]LivePosition, error)
	GetTransactions(ctx context.Context, sessionToken string) ([]LiveTransaction, error)
	GetBalances(ctx context.Context, sessionToken string) ([]LiveBalance, error)
}

// HTTPLiveClient is a JSON-over-HTTP LiveClient.
type HTTPLiveClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPLiveClient creates a live client against the given API base URL.
func NewHTTPLiveClient(baseURL string, httpClient *http.Client) *HTTPLiveClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPLiveClient{baseURL: baseURL, httpClient: httpClient}
}

// GetPositions implements LiveClient.
func (c *HTTPLiveClient) GetPositions(ctx context.Context, sessionToken string) ([]LivePosition, error) {
	var positions []LivePosition
	if err := c.getJSON(ctx, "/positions", sessionToken, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetTransactions implements LiveClient.
func (c *HTTPLiveClient) GetTransactions(ctx context.Context, sessionToken string) ([]LiveTransaction, error) {
	var transactions []LiveTransaction
	if err := c.getJSON(ctx, "/transactions", sessionToken, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetBalances implements LiveClient.
func (c *HTTPLiveClient) GetBalances(ctx context.Context, sessionToken string) ([]LiveBalance, error) {
	var balances []LiveBalance
	if err := c.getJSON(ctx, "/balances", sessionToken, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

func (c *HTTPLiveClient) getJSON(ctx context.Context, path, sessionToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s returned %d", ErrUpstreamAuth, path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// SnapshotAdapter syncs an account from a live broker API that reports
// current positions, balances and recent transactions but no tax-lot
// detail. Lots are always reconstructed from the full trade history.
type SnapshotAdapter struct {
	client LiveClient
	store  Store
	creds  secrets.Store
}

// NewSnapshotAdapter creates a live-API adapter.
func NewSnapshotAdapter(client LiveClient, store Store, creds secrets.Store) *SnapshotAdapter {
	return &SnapshotAdapter{
		client: client,
		store:  store,
		creds:  creds,
	}
}

// Sync implements Adapter. Steps with no live-API equivalent (option
// positions, interest, transfers) record a zero count so every result
// carries the same step sequence.
func (a *SnapshotAdapter) Sync(ctx context.Context, account *models.Account) (*models.SyncResult, error) {
	session, err := a.sessionToken(account)
	if err != nil {
		return nil, err
	}
	positions, err := a.client.GetPositions(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	transactions, err := a.client.GetTransactions(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	balances, err := a.client.GetBalances(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}

	result := &models.SyncResult{AccountID: account.ID}

	count, err := a.syncInstruments(account, positions, transactions)
	result.AddStep(models.StepInstruments, count, err)

	lots, count, err := a.syncTaxLots(account, transactions)
	result.AddStep(models.StepTaxLots, count, err)

	result.AddStep(models.StepOptionPositions, 0, nil)

	count, err = a.syncTrades(account, transactions)
	result.AddStep(models.StepTrades, count, err)

	aggregated, count, err := a.syncPosition(account, lots, positions)
	result.AddStep(models.StepPosition, count, err)

	count, err = a.syncSnapshot(account, aggregated, balances)
	result.AddStep(models.StepSnapshot, count, err)

	count, err = a.syncCashTransactions(account, transactions)
	result.AddStep(models.StepCashTransactions, count, err)

	count, err = a.syncBalances(account, balances)
	result.AddStep(models.StepBalances, count, err)

	result.AddStep(models.StepInterest, 0, nil)
	result.AddStep(models.StepTransfers, 0, nil)

	return result, nil
}

// sessionToken decrypts the stored broker session. A missing or
// undecryptable credential means the account must be re-linked.
func (a *SnapshotAdapter) sessionToken(account *models.Account) (string, error) {
	if account.CredentialsToken == "" {
		return "", fmt.Errorf("%w: account has no stored credentials", ErrUpstreamAuth)
	}
	payload, err := a.creds.Decrypt(account.CredentialsToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	return string(payload), nil
}

func (a *SnapshotAdapter) syncInstruments(account *models.Account, positions []LivePosition, transactions []LiveTransaction) (int, error) {
	seen := make(map[string]bool)
	var instruments []*models.Instrument
	add := func(symbol, currency string) {
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		instruments = append(instruments, &models.Instrument{
			AccountID:     account.ID,
			Symbol:        symbol,
			AssetCategory: models.AssetCategoryStock,
			Currency:      currency,
		})
	}
	for _, p := range positions {
		add(p.Symbol, p.Currency)
	}
	for _, t := range transactions {
		add(t.Symbol, t.Currency)
	}
	if len(instruments) == 0 {
		return 0, nil
	}
	return a.store.UpsertInstruments(instruments)
}

func (a *SnapshotAdapter) syncTaxLots(account *models.Account, transactions []LiveTransaction) ([]*models.TaxLot, int, error) {
	trades, err := a.fullTradeHistory(account, transactions)
	if err != nil {
		return nil, 0, err
	}
	if len(trades) == 0 {
		existing, err := a.store.GetOpenLotsByAccount(account.ID)
		if err != nil {
			return nil, 0, err
		}
		return existing, 0, nil
	}
	lots, violations := taxlot.Reconstruct(account.ID, trades)
	for _, v := range violations {
		log.Printf("sync: account %d oversold %s by %s (execution %s), lots flagged for review",
			account.ID, v.Symbol, v.Excess.String(), v.ExecutionID)
	}
	if len(lots) == 0 {
		existing, err := a.store.GetOpenLotsByAccount(account.ID)
		if err != nil {
			return nil, 0, err
		}
		return existing, 0, nil
	}
	if err := a.store.ReplaceAccountTaxLots(account.ID, lots); err != nil {
		return nil, 0, err
	}
	return lots, len(lots), nil
}

func (a *SnapshotAdapter) syncTrades(account *models.Account, transactions []LiveTransaction) (int, error) {
	trades := liveTrades(account, transactions)
	if len(trades) == 0 {
		return 0, nil
	}
	return a.store.InsertTrades(trades)
}

// syncPosition aggregates the reconstructed lots and marks them with the
// live API's own last prices.
func (a *SnapshotAdapter) syncPosition(account *models.Account, lots []*models.TaxLot, positions []LivePosition) ([]*models.Position, int, error) {
	if len(lots) == 0 {
		return nil, 0, nil
	}
	marks := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		if p.LastPrice.IsPositive() {
			marks[p.Symbol] = p.LastPrice
		}
	}
	aggregated := taxlot.AggregatePositions(lots, func(symbol string) *decimal.Decimal {
		if mark, ok := marks[symbol]; ok {
			return &mark
		}
		return nil
	})
	if len(aggregated) == 0 {
		return nil, 0, nil
	}
	if err := a.store.ReplaceAccountPositions(account.ID, aggregated); err != nil {
		return nil, 0, err
	}
	return aggregated, len(aggregated), nil
}

func (a *SnapshotAdapter) syncSnapshot(account *models.Account, positions []*models.Position, balances []LiveBalance) (int, error) {
	positionValue := decimal.Zero
	for _, p := range positions {
		if p.MarketValue.IsZero() {
			positionValue = positionValue.Add(p.CostBasis)
		} else {
			positionValue = positionValue.Add(p.MarketValue)
		}
	}
	cashValue := decimal.Zero
	for _, b := range balances {
		cashValue = cashValue.Add(b.Cash)
	}
	snapshot := &models.AccountSnapshot{
		AccountID:     account.ID,
		TotalValue:    positionValue.Add(cashValue),
		CashValue:     cashValue,
		PositionValue: positionValue,
		Currency:      account.Currency,
		TakenAt:       time.Now().UTC(),
	}
	if err := a.store.InsertSnapshot(snapshot); err != nil {
		return 0, err
	}
	return 1, nil
}

func (a *SnapshotAdapter) syncCashTransactions(account *models.Account, transactions []LiveTransaction) (int, error) {
	var cash []*models.CashTransaction
	for _, tx := range transactions {
		if tx.Type != liveTypeDividend || tx.ID == "" || tx.Amount.IsZero() {
			continue
		}
		cash = append(cash, &models.CashTransaction{
			AccountID:       account.ID,
			ExternalID:      tx.ID,
			Type:            models.CashTypeDividend,
			Symbol:          tx.Symbol,
			Amount:          tx.Amount,
			NetAmount:       tx.Amount.Sub(tx.Fees),
			Currency:        tx.Currency,
			TransactionDate: tx.ExecutedAt,
		})
	}
	if len(cash) == 0 {
		return 0, nil
	}
	return a.store.InsertCashTransactions(cash)
}

func (a *SnapshotAdapter) syncBalances(account *models.Account, balances []LiveBalance) (int, error) {
	if len(balances) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]*models.AccountBalance, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, &models.AccountBalance{
			AccountID:  account.ID,
			Currency:   b.Currency,
			Cash:       b.Cash,
			ReportDate: now,
		})
	}
	if err := a.store.ReplaceAccountBalances(account.ID, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (a *SnapshotAdapter) fullTradeHistory(account *models.Account, transactions []LiveTransaction) ([]*models.Trade, error) {
	stored, err := a.store.GetTradesByAccount(account.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	for _, t := range stored {
		seen[t.ExecutionID] = true
	}
	merged := stored
	for _, t := range liveTrades(account, transactions) {
		if seen[t.ExecutionID] {
			continue
		}
		seen[t.ExecutionID] = true
		merged = append(merged, t)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ExecutedAt.Before(merged[j].ExecutedAt)
	})
	return merged, nil
}

func liveTrades(account *models.Account, transactions []LiveTransaction) []*models.Trade {
	var trades []*models.Trade
	for _, tx := range transactions {
		if tx.Type != liveTypeTrade || tx.ID == "" {
			continue
		}
		if tx.Quantity.IsZero() || tx.Price.IsZero() || tx.ExecutedAt.IsZero() {
			log.Printf("sync: dropping live trade %s (%s) with missing fields", tx.ID, tx.Symbol)
			continue
		}
		side := tx.Side
		if side != models.TradeSideBuy && side != models.TradeSideSell {
			if tx.Quantity.IsNegative() {
				side = models.TradeSideSell
			} else {
				side = models.TradeSideBuy
			}
		}
		quantity := tx.Quantity.Abs()
		proceeds := tx.Price.Mul(quantity)
		if side == models.TradeSideBuy {
			proceeds = proceeds.Neg()
		}
		trades = append(trades, &models.Trade{
			AccountID:     account.ID,
			ExecutionID:   tx.ID,
			Symbol:        tx.Symbol,
			Side:          side,
			AssetCategory: models.AssetCategoryStock,
			Quantity:      quantity,
			Price:         tx.Price,
			Proceeds:      proceeds,
			Commission:    tx.Fees,
			Currency:      tx.Currency,
			ExecutedAt:    tx.ExecutedAt,
		})
	}
	return trades
}
