// Package taxlot reconstructs per-acquisition cost-basis records from trade
// history and selects lots for disposals under FIFO/LIFO/HIFO policies.
package taxlot

import (
	"log"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// Violation records a disposal that would have driven a lot's remaining
// quantity negative. Consumption is clipped to zero and the symbol's lots
// are flagged for manual review instead of failing the sync.
type Violation struct {
	Symbol      string
	ExecutionID string
	Excess      decimal.Decimal
}

// Reconstruct replays an account's trades chronologically and returns the
// currently open lots. Acquisitions create lots; disposals deplete existing
// lots oldest-first (reconstruction always uses FIFO regardless of the
// account's configured sale method). Fully depleted lots are excluded from
// the output.
//
// Output is deterministic for a given trade set: trades are sorted by
// execution time, with buys before sells at the same instant and execution
// id as the final tie-break.
func Reconstruct(accountID int, trades []*models.Trade) ([]*models.TaxLot, []Violation) {
	sorted := make([]*models.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ExecutedAt.Equal(b.ExecutedAt) {
			return a.ExecutedAt.Before(b.ExecutedAt)
		}
		// Buys first so same-day buy+sell has lots to consume.
		if a.Side != b.Side {
			return a.Side == models.TradeSideBuy
		}
		return a.ExecutionID < b.ExecutionID
	})

	open := make(map[string][]*models.TaxLot)
	var symbols []string
	var violations []Violation
	flagged := make(map[string]bool)

	for _, trade := range sorted {
		if trade.Quantity.IsZero() || trade.Price.IsZero() {
			// Zero quantity or price fails basic shape checks; the record
			// cannot contribute to cost basis.
			log.Printf("taxlot: dropping invalid trade %s (%s qty=%s price=%s)",
				trade.ExecutionID, trade.Symbol, trade.Quantity, trade.Price)
			continue
		}
		if _, ok := open[trade.Symbol]; !ok {
			symbols = append(symbols, trade.Symbol)
			open[trade.Symbol] = nil
		}
		switch trade.Side {
		case models.TradeSideBuy:
			tradeID := trade.ID
			lot := &models.TaxLot{
				AccountID:         accountID,
				Symbol:            trade.Symbol,
				AssetCategory:     trade.AssetCategory,
				AcquisitionDate:   trade.ExecutedAt,
				OriginalQuantity:  trade.Quantity,
				RemainingQuantity: trade.Quantity,
				CostPerUnit:       trade.Price,
				CostBasis:         trade.Price.Mul(trade.Quantity),
				Currency:          trade.Currency,
				Source:            models.LotSourceReconstructed,
			}
			if tradeID != 0 {
				lot.TradeID = &tradeID
			}
			open[trade.Symbol] = append(open[trade.Symbol], lot)
		case models.TradeSideSell:
			remaining := trade.Quantity.Abs()
			lots := open[trade.Symbol]
			for _, lot := range lots {
				if remaining.IsZero() {
					break
				}
				if lot.RemainingQuantity.IsZero() {
					continue
				}
				consumed := decimal.Min(lot.RemainingQuantity, remaining)
				lot.RemainingQuantity = lot.RemainingQuantity.Sub(consumed)
				remaining = remaining.Sub(consumed)
			}
			if remaining.IsPositive() {
				log.Printf("taxlot: disposal of %s exceeds open lots for %s by %s, clipping",
					trade.ExecutionID, trade.Symbol, remaining)
				violations = append(violations, Violation{
					Symbol:      trade.Symbol,
					ExecutionID: trade.ExecutionID,
					Excess:      remaining,
				})
				flagged[trade.Symbol] = true
			}
		}
	}

	var result []*models.TaxLot
	for _, symbol := range symbols {
		for _, lot := range open[symbol] {
			if !lot.RemainingQuantity.IsPositive() {
				continue
			}
			lot.CostBasis = lot.CostPerUnit.Mul(lot.RemainingQuantity)
			lot.NeedsReview = flagged[symbol]
			result = append(result, lot)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].AcquisitionDate.Before(result[j].AcquisitionDate)
	})
	return result, violations
}

// PriceFunc returns the current price for a symbol, or nil when no mark is
// available.
type PriceFunc func(symbol string) *decimal.Decimal

// AggregatePositions rolls open lots up into per-symbol positions with
// weighted average cost. When priceFn supplies a mark, market value and
// unrealized P&L are annotated; a missing mark degrades those fields to
// zero rather than blocking.
func AggregatePositions(lots []*models.TaxLot, priceFn PriceFunc) []*models.Position {
	bySymbol := make(map[string]*models.Position)
	var symbols []string
	for _, lot := range lots {
		pos, ok := bySymbol[lot.Symbol]
		if !ok {
			pos = &models.Position{
				AccountID:     lot.AccountID,
				Symbol:        lot.Symbol,
				AssetCategory: lot.AssetCategory,
				Currency:      lot.Currency,
			}
			bySymbol[lot.Symbol] = pos
			symbols = append(symbols, lot.Symbol)
		}
		pos.Quantity = pos.Quantity.Add(lot.RemainingQuantity)
		pos.CostBasis = pos.CostBasis.Add(lot.RemainingCostBasis())
	}
	sort.Strings(symbols)
	positions := make([]*models.Position, 0, len(symbols))
	for _, symbol := range symbols {
		pos := bySymbol[symbol]
		if pos.Quantity.IsZero() {
			continue
		}
		pos.AverageCost = pos.CostBasis.Div(pos.Quantity)
		if priceFn != nil {
			if mark := priceFn(symbol); mark != nil {
				pos.MarkPrice = *mark
				pos.MarketValue = mark.Mul(pos.Quantity)
				pos.UnrealizedPnl = pos.MarketValue.Sub(pos.CostBasis)
			}
		}
		positions = append(positions, pos)
	}
	return positions
}
