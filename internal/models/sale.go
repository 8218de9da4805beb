package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleAllocation records the consumption of one lot slice by a disposal.
type SaleAllocation struct {
	LotID            int             `json:"lot_id"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
	QuantityConsumed decimal.Decimal `json:"quantity_consumed"`
	CostPerUnit      decimal.Decimal `json:"cost_per_unit"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	Proceeds         decimal.Decimal `json:"proceeds"`
	RealizedPnl      decimal.Decimal `json:"realized_pnl"`
	LongTerm         bool            `json:"long_term"`
}

// SaleResult is the output of executing or simulating a disposal. It is
// ephemeral: not persisted unless the caller records it as a realized-gain
// event.
type SaleResult struct {
	Symbol       string           `json:"symbol"`
	Method       string           `json:"method"`
	SaleDate     time.Time        `json:"sale_date"`
	SalePrice    decimal.Decimal  `json:"sale_price"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Allocations  []SaleAllocation `json:"allocations"`
	ShortTermPnl decimal.Decimal  `json:"short_term_pnl"`
	LongTermPnl  decimal.Decimal  `json:"long_term_pnl"`
	TotalPnl     decimal.Decimal  `json:"total_pnl"`
	Unfilled     decimal.Decimal  `json:"unfilled,omitempty"`
}
