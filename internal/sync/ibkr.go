package sync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-ledger/internal/flexquery"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/pricing"
	"github.com/trogers1052/portfolio-ledger/internal/taxlot"
)

// StatementAdapter syncs an account from one broker statement document per
// run. The document is downloaded and parsed once, then each step persists
// its slice of the parsed data.
type StatementAdapter struct {
	client flexquery.Client
	store  Store
	prices pricing.Source
}

// NewStatementAdapter creates a statement-based adapter. prices may be nil,
// in which case positions are persisted without marks.
func NewStatementAdapter(client flexquery.Client, store Store, prices pricing.Source) *StatementAdapter {
	return &StatementAdapter{
		client: client,
		store:  store,
		prices: prices,
	}
}

// Sync implements Adapter. A step failure is recorded on the result and the
// remaining steps still run; the error return is reserved for failures that
// happen before any step can run (download, parse).
func (a *StatementAdapter) Sync(ctx context.Context, account *models.Account) (*models.SyncResult, error) {
	data, err := a.client.Download(ctx, account.AccountNumber)
	if err != nil {
		return nil, err
	}
	parsed, err := flexquery.Parse(data, account.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	result := &models.SyncResult{AccountID: account.ID}

	count, err := a.syncInstruments(account, parsed)
	result.AddStep(models.StepInstruments, count, err)

	lots, count, err := a.syncTaxLots(account, parsed)
	result.AddStep(models.StepTaxLots, count, err)

	count, err = a.syncOptionPositions(account, parsed)
	result.AddStep(models.StepOptionPositions, count, err)

	count, err = a.syncTrades(account, parsed)
	result.AddStep(models.StepTrades, count, err)

	positions, count, err := a.syncPosition(ctx, account, lots)
	result.AddStep(models.StepPosition, count, err)

	count, err = a.syncSnapshot(account, parsed, positions)
	result.AddStep(models.StepSnapshot, count, err)

	count, err = a.syncCashTransactions(account, parsed)
	result.AddStep(models.StepCashTransactions, count, err)

	count, err = a.syncBalances(account, parsed)
	result.AddStep(models.StepBalances, count, err)

	count, err = a.syncInterest(account, parsed)
	result.AddStep(models.StepInterest, count, err)

	count, err = a.syncTransfers(account, parsed)
	result.AddStep(models.StepTransfers, count, err)

	return result, nil
}

// syncInstruments upserts one instrument per distinct symbol seen in the
// statement's trades and positions.
func (a *StatementAdapter) syncInstruments(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	seen := make(map[string]bool)
	var instruments []*models.Instrument
	add := func(symbol, description, assetCategory, currency string) {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		instruments = append(instruments, &models.Instrument{
			AccountID:     account.ID,
			Symbol:        symbol,
			Description:   description,
			AssetCategory: assetCategory,
			Currency:      currency,
		})
	}
	for _, t := range parsed.Trades {
		add(t.Symbol, t.Description, t.AssetCategory, t.Currency)
	}
	for _, p := range parsed.OpenPositions {
		add(p.Symbol, p.Description, p.AssetCategory, p.Currency)
	}
	if len(instruments) == 0 {
		return 0, nil
	}
	return a.store.UpsertInstruments(instruments)
}

// syncTaxLots persists the account's open tax lots and returns them for the
// position and snapshot steps. Official per-acquisition lot rows win when
// the statement carries them; otherwise lots are reconstructed from the
// full trade history. An empty upstream leaves existing rows untouched.
func (a *StatementAdapter) syncTaxLots(account *models.Account, parsed *flexquery.ParsedStatement) ([]*models.TaxLot, int, error) {
	lots := officialLots(account, parsed.Lots)
	if len(lots) == 0 {
		trades, err := a.fullTradeHistory(account, parsed)
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
		var violations []taxlot.Violation
		lots, violations = taxlot.Reconstruct(account.ID, trades)
		for _, v := range violations {
			log.Printf("sync: account %d oversold %s by %s (execution %s), lots flagged for review",
				account.ID, v.Symbol, v.Excess.String(), v.ExecutionID)
		}
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

func (a *StatementAdapter) syncOptionPositions(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	var positions []*models.OptionPosition
	for _, p := range parsed.OpenPositions {
		if p.AssetCategory != models.AssetCategoryOption {
			continue
		}
		if p.Quantity == nil || p.Quantity.IsZero() {
			log.Printf("sync: dropping option position %s with missing quantity", p.Symbol)
			continue
		}
		pos := &models.OptionPosition{
			AccountID:  account.ID,
			Symbol:     p.Symbol,
			Underlying: p.Underlying,
			PutCall:    p.PutCall,
			Quantity:   *p.Quantity,
			Expiry:     p.Expiry,
			Currency:   p.Currency,
		}
		if p.Strike != nil {
			pos.Strike = *p.Strike
		}
		if p.CostPerUnit != nil {
			pos.CostBasis = p.CostPerUnit.Mul(p.Quantity.Abs())
		}
		if p.MarkPrice != nil {
			pos.MarkPrice = *p.MarkPrice
		}
		if p.PositionValue != nil {
			pos.MarketValue = *p.PositionValue
		}
		positions = append(positions, pos)
	}
	if len(positions) == 0 {
		return 0, nil
	}
	if err := a.store.ReplaceAccountOptionPositions(account.ID, positions); err != nil {
		return 0, err
	}
	return len(positions), nil
}

// syncTrades inserts the statement's fills plus synthetic trades derived
// from option exercises and assignments. Duplicate execution IDs are
// ignored by the store so re-syncing an overlapping period is safe.
func (a *StatementAdapter) syncTrades(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	trades := statementTrades(account, parsed)
	if len(trades) == 0 {
		return 0, nil
	}
	return a.store.InsertTrades(trades)
}

// syncPosition rebuilds the aggregate per-symbol positions from the open
// lots persisted this run.
func (a *StatementAdapter) syncPosition(ctx context.Context, account *models.Account, lots []*models.TaxLot) ([]*models.Position, int, error) {
	if len(lots) == 0 {
		return nil, 0, nil
	}
	positions := taxlot.AggregatePositions(lots, a.priceFunc(ctx))
	if len(positions) == 0 {
		return nil, 0, nil
	}
	if err := a.store.ReplaceAccountPositions(account.ID, positions); err != nil {
		return nil, 0, err
	}
	return positions, len(positions), nil
}

// syncSnapshot appends one account-value snapshot. Position value prefers
// the marked market value and falls back to cost basis when no mark was
// available.
func (a *StatementAdapter) syncSnapshot(account *models.Account, parsed *flexquery.ParsedStatement, positions []*models.Position) (int, error) {
	positionValue := decimal.Zero
	for _, p := range positions {
		if p.MarketValue.IsZero() {
			positionValue = positionValue.Add(p.CostBasis)
		} else {
			positionValue = positionValue.Add(p.MarketValue)
		}
	}
	cashValue := decimal.Zero
	for _, b := range parsed.Balances {
		if b.EndingCash != nil {
			cashValue = cashValue.Add(*b.EndingCash)
		}
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

func (a *StatementAdapter) syncCashTransactions(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	var transactions []*models.CashTransaction
	for _, c := range parsed.CashTransactions {
		if c.ExternalID == "" || c.Amount == nil || c.Date == nil {
			log.Printf("sync: dropping cash transaction %q (%s) with missing fields", c.ExternalID, c.Type)
			continue
		}
		tx := &models.CashTransaction{
			AccountID:       account.ID,
			ExternalID:      c.ExternalID,
			Type:            c.Type,
			Symbol:          c.Symbol,
			Description:     c.Description,
			Amount:          *c.Amount,
			Currency:        c.Currency,
			TransactionDate: *c.Date,
		}
		if c.NetAmount != nil {
			tx.NetAmount = *c.NetAmount
		} else {
			tx.NetAmount = *c.Amount
		}
		transactions = append(transactions, tx)
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	return a.store.InsertCashTransactions(transactions)
}

func (a *StatementAdapter) syncBalances(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	var balances []*models.AccountBalance
	for _, b := range parsed.Balances {
		if b.EndingCash == nil {
			continue
		}
		balance := &models.AccountBalance{
			AccountID: account.ID,
			Currency:  b.Currency,
			Cash:      *b.EndingCash,
		}
		if b.ReportDate != nil {
			balance.ReportDate = *b.ReportDate
		} else {
			balance.ReportDate = time.Now().UTC()
		}
		balances = append(balances, balance)
	}
	if len(balances) == 0 {
		return 0, nil
	}
	if err := a.store.ReplaceAccountBalances(account.ID, balances); err != nil {
		return 0, err
	}
	return len(balances), nil
}

// syncInterest records each interest accrual period as a cash transaction
// with a deterministic external ID so overlapping report periods dedupe.
func (a *StatementAdapter) syncInterest(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	var transactions []*models.CashTransaction
	for _, accrual := range parsed.InterestAccruals {
		if accrual.InterestAccrued == nil || accrual.InterestAccrued.IsZero() || accrual.ToDate == nil {
			continue
		}
		cashType := models.CashTypeInterest
		if accrual.InterestAccrued.IsNegative() {
			cashType = models.CashTypeInterestPaid
		}
		transactions = append(transactions, &models.CashTransaction{
			AccountID:       account.ID,
			ExternalID:      fmt.Sprintf("interest-%s-%s", accrual.Currency, accrual.ToDate.Format("20060102")),
			Type:            cashType,
			Description:     fmt.Sprintf("Interest accrued %s", accrual.Currency),
			Amount:          *accrual.InterestAccrued,
			NetAmount:       *accrual.InterestAccrued,
			Currency:        accrual.Currency,
			TransactionDate: *accrual.ToDate,
		})
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	return a.store.InsertCashTransactions(transactions)
}

// syncTransfers records security transfers as synthetic trades (incoming
// as buys, outgoing as sells) and cash transfers as deposit/withdrawal
// transactions.
func (a *StatementAdapter) syncTransfers(account *models.Account, parsed *flexquery.ParsedStatement) (int, error) {
	var trades []*models.Trade
	var cash []*models.CashTransaction
	for _, transfer := range parsed.Transfers {
		if transfer.Date == nil {
			log.Printf("sync: dropping transfer %q with missing date", transfer.ExternalID)
			continue
		}
		if transfer.CashTransfer != nil && !transfer.CashTransfer.IsZero() {
			cash = append(cash, &models.CashTransaction{
				AccountID:       account.ID,
				ExternalID:      fmt.Sprintf("transfer-%s", transfer.ExternalID),
				Type:            models.CashTypeDeposit,
				Description:     transfer.Description,
				Amount:          *transfer.CashTransfer,
				NetAmount:       *transfer.CashTransfer,
				Currency:        transfer.Currency,
				TransactionDate: *transfer.Date,
			})
			continue
		}
		if transfer.Symbol == "" || transfer.Quantity == nil || transfer.Quantity.IsZero() || transfer.TransferPrice == nil {
			continue
		}
		side := models.TradeSideBuy
		if transfer.Direction == "OUT" || transfer.Quantity.IsNegative() {
			side = models.TradeSideSell
		}
		quantity := transfer.Quantity.Abs()
		trades = append(trades, &models.Trade{
			AccountID:     account.ID,
			ExecutionID:   fmt.Sprintf("transfer-%s", transfer.ExternalID),
			Symbol:        transfer.Symbol,
			Side:          side,
			AssetCategory: transfer.AssetCategory,
			Quantity:      quantity,
			Price:         *transfer.TransferPrice,
			Proceeds:      transfer.TransferPrice.Mul(quantity).Neg(),
			Currency:      transfer.Currency,
			ExecutedAt:    *transfer.Date,
		})
	}
	count := 0
	if len(trades) > 0 {
		n, err := a.store.InsertTrades(trades)
		if err != nil {
			return count, err
		}
		count += n
	}
	if len(cash) > 0 {
		n, err := a.store.InsertCashTransactions(cash)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// priceFunc adapts the price source to the aggregation callback. A lookup
// failure logs and degrades to no mark, it never fails the step.
func (a *StatementAdapter) priceFunc(ctx context.Context) taxlot.PriceFunc {
	if a.prices == nil {
		return nil
	}
	return func(symbol string) *decimal.Decimal {
		price, err := a.prices.GetCurrentPrice(ctx, symbol)
		if err != nil {
			log.Printf("sync: no mark for %s: %v", symbol, err)
			return nil
		}
		return &price
	}
}

// fullTradeHistory merges already-persisted trades with this statement's
// trades, deduplicated by execution ID, so reconstruction always replays
// the complete history.
func (a *StatementAdapter) fullTradeHistory(account *models.Account, parsed *flexquery.ParsedStatement) ([]*models.Trade, error) {
	stored, err := a.store.GetTradesByAccount(account.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	for _, t := range stored {
		seen[t.ExecutionID] = true
	}
	merged := stored
	for _, t := range statementTrades(account, parsed) {
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

// officialLots converts the statement's per-acquisition lot rows, dropping
// rows missing the fields cost-basis math depends on.
func officialLots(account *models.Account, parsed []flexquery.ParsedLot) []*models.TaxLot {
	var lots []*models.TaxLot
	for _, row := range parsed {
		if row.AcquisitionDate == nil || row.Quantity == nil || !row.Quantity.IsPositive() || row.CostPerUnit == nil {
			if row.Symbol != "" {
				log.Printf("sync: dropping official lot %s with missing fields", row.Symbol)
			}
			continue
		}
		lots = append(lots, &models.TaxLot{
			AccountID:         account.ID,
			Symbol:            row.Symbol,
			AssetCategory:     row.AssetCategory,
			AcquisitionDate:   *row.AcquisitionDate,
			OriginalQuantity:  *row.Quantity,
			RemainingQuantity: *row.Quantity,
			CostPerUnit:       *row.CostPerUnit,
			CostBasis:         row.CostPerUnit.Mul(*row.Quantity),
			Currency:          row.Currency,
			Source:            models.LotSourceOfficial,
		})
	}
	return lots
}

// statementTrades converts the statement's fills and option exercise rows
// into canonical trades, dropping rows missing quantity, price or date.
func statementTrades(account *models.Account, parsed *flexquery.ParsedStatement) []*models.Trade {
	var trades []*models.Trade
	for _, row := range parsed.Trades {
		if row.Quantity == nil || row.Price == nil || row.ExecutedAt == nil {
			log.Printf("sync: dropping trade %s (%s) with missing fields", row.ExecutionID, row.Symbol)
			continue
		}
		side := row.BuySell
		if side != models.TradeSideBuy && side != models.TradeSideSell {
			if row.Quantity.IsNegative() {
				side = models.TradeSideSell
			} else {
				side = models.TradeSideBuy
			}
		}
		trade := &models.Trade{
			AccountID:     account.ID,
			ExecutionID:   row.ExecutionID,
			OrderID:       row.OrderID,
			Symbol:        row.Symbol,
			Side:          side,
			AssetCategory: row.AssetCategory,
			Quantity:      row.Quantity.Abs(),
			Price:         *row.Price,
			Currency:      row.Currency,
			ExecutedAt:    *row.ExecutedAt,
		}
		if row.Proceeds != nil {
			trade.Proceeds = *row.Proceeds
		}
		if row.Commission != nil {
			trade.Commission = *row.Commission
		}
		trades = append(trades, trade)
	}
	for _, row := range parsed.OptionExercises {
		if row.ExecutionID == "" || row.Quantity == nil || row.Quantity.IsZero() || row.Price == nil || row.Date == nil {
			continue
		}
		side := models.TradeSideBuy
		if row.Quantity.IsNegative() {
			side = models.TradeSideSell
		}
		trade := &models.Trade{
			AccountID:     account.ID,
			ExecutionID:   row.ExecutionID,
			Symbol:        row.Symbol,
			Side:          side,
			AssetCategory: row.AssetCategory,
			Quantity:      row.Quantity.Abs(),
			Price:         *row.Price,
			Currency:      row.Currency,
			ExecutedAt:    *row.Date,
		}
		if row.Commission != nil {
			trade.Commission = *row.Commission
		}
		trades = append(trades, trade)
	}
	return trades
}
