package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tax lot source constants
const (
	LotSourceOfficial      = "OFFICIAL"
	LotSourceReconstructed = "RECONSTRUCTED"
	LotSourceManual        = "MANUAL"
)

// TaxLot represents one discrete acquisition of a security, tracked
// separately for cost-basis and holding-period purposes.
//
// Invariant: 0 <= RemainingQuantity <= OriginalQuantity, and the sum of
// RemainingQuantity across a symbol's lots equals the symbol's aggregate
// position quantity.
type TaxLot struct {
	ID                int             `json:"id"`
	AccountID         int             `json:"account_id"`
	Symbol            string          `json:"symbol"`
	AssetCategory     string          `json:"asset_category"`
	AcquisitionDate   time.Time       `json:"acquisition_date"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	Currency          string          `json:"currency"`
	Source            string          `json:"source"`
	TradeID           *int            `json:"trade_id,omitempty"`
	NeedsReview       bool            `json:"needs_review"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RemainingCostBasis returns the cost basis of the still-open portion of
// the lot.
func (l *TaxLot) RemainingCostBasis() decimal.Decimal {
	return l.CostPerUnit.Mul(l.RemainingQuantity)
}

// HoldingDays returns the number of whole days the lot has been held as of
// the given date.
func (l *TaxLot) HoldingDays(asOf time.Time) int {
	return int(asOf.Sub(l.AcquisitionDate).Hours() / 24)
}

// IsLongTerm reports whether the lot qualifies for long-term treatment
// (held at least 365 days) as of the given date.
func (l *TaxLot) IsLongTerm(asOf time.Time) bool {
	return l.HoldingDays(asOf) >= 365
}
