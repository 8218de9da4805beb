package taxlot

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// OrderLots returns the lots in the consumption order for the given
// selection method: FIFO sorts by acquisition date ascending, LIFO
// descending, HIFO by cost per unit descending. Lots with an identical
// sort key keep their original order so selection is deterministic.
func OrderLots(lots []*models.TaxLot, method string) ([]*models.TaxLot, error) {
	ordered := make([]*models.TaxLot, len(lots))
	copy(ordered, lots)
	switch method {
	case models.LotMethodFIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].AcquisitionDate.Before(ordered[j].AcquisitionDate)
		})
	case models.LotMethodLIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].AcquisitionDate.After(ordered[j].AcquisitionDate)
		})
	case models.LotMethodHIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CostPerUnit.GreaterThan(ordered[j].CostPerUnit)
		})
	default:
		return nil, fmt.Errorf("unknown lot selection method: %s", method)
	}
	return ordered, nil
}

// Plan computes the consumption plan for disposing quantity units at
// salePrice on saleDate, without mutating the lots. Each allocation carries
// realized P&L and the 365-day holding-period classification. If the open
// lots cannot cover the full quantity, the shortfall is reported in
// Unfilled rather than failing.
func Plan(lots []*models.TaxLot, method string, symbol string, quantity, salePrice decimal.Decimal, saleDate time.Time) (*models.SaleResult, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("disposal quantity must be positive, got %s", quantity)
	}
	ordered, err := OrderLots(lots, method)
	if err != nil {
		return nil, err
	}
	result := &models.SaleResult{
		Symbol:    symbol,
		Method:    method,
		SaleDate:  saleDate,
		SalePrice: salePrice,
		Quantity:  quantity,
	}
	remaining := quantity
	for _, lot := range ordered {
		if remaining.IsZero() {
			break
		}
		if lot.Symbol != symbol || !lot.RemainingQuantity.IsPositive() {
			continue
		}
		consumed := decimal.Min(lot.RemainingQuantity, remaining)
		costBasis := lot.CostPerUnit.Mul(consumed)
		proceeds := salePrice.Mul(consumed)
		pnl := proceeds.Sub(costBasis)
		longTerm := lot.IsLongTerm(saleDate)
		result.Allocations = append(result.Allocations, models.SaleAllocation{
			LotID:            lot.ID,
			AcquisitionDate:  lot.AcquisitionDate,
			QuantityConsumed: consumed,
			CostPerUnit:      lot.CostPerUnit,
			CostBasis:        costBasis,
			Proceeds:         proceeds,
			RealizedPnl:      pnl,
			LongTerm:         longTerm,
		})
		if longTerm {
			result.LongTermPnl = result.LongTermPnl.Add(pnl)
		} else {
			result.ShortTermPnl = result.ShortTermPnl.Add(pnl)
		}
		result.TotalPnl = result.TotalPnl.Add(pnl)
		remaining = remaining.Sub(consumed)
	}
	result.Unfilled = remaining
	return result, nil
}

// Execute applies a disposal to the lots: it computes the same plan as
// Plan and decrements each consumed lot's remaining quantity. The caller
// owns persisting the mutated lots and, optionally, recording the result
// as a realized-gain event.
func Execute(lots []*models.TaxLot, method string, symbol string, quantity, salePrice decimal.Decimal, saleDate time.Time) (*models.SaleResult, error) {
	result, err := Plan(lots, method, symbol, quantity, salePrice, saleDate)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*models.TaxLot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}
	for _, alloc := range result.Allocations {
		lot, ok := byID[alloc.LotID]
		if !ok {
			return nil, fmt.Errorf("allocation references unknown lot %d", alloc.LotID)
		}
		lot.RemainingQuantity = lot.RemainingQuantity.Sub(alloc.QuantityConsumed)
		lot.CostBasis = lot.CostPerUnit.Mul(lot.RemainingQuantity)
	}
	return result, nil
}
