package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents the aggregate rollup of a symbol's open tax lots.
// It is a materialized view: fully recomputable from TaxLot rows and
// rebuilt on every sync rather than incrementally patched.
type Position struct {
	ID            int             `json:"id"`
	AccountID     int             `json:"account_id"`
	Symbol        string          `json:"symbol"`
	AssetCategory string          `json:"asset_category"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	MarkPrice     decimal.Decimal `json:"mark_price,omitempty"`
	MarketValue   decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl,omitempty"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OptionPosition represents an open option contract position.
type OptionPosition struct {
	ID          int             `json:"id"`
	AccountID   int             `json:"account_id"`
	Symbol      string          `json:"symbol"`
	Underlying  string          `json:"underlying,omitempty"`
	PutCall     string          `json:"put_call,omitempty"`
	Strike      decimal.Decimal `json:"strike,omitempty"`
	Expiry      *time.Time      `json:"expiry,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	MarkPrice   decimal.Decimal `json:"mark_price,omitempty"`
	MarketValue decimal.Decimal `json:"market_value,omitempty"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Instrument represents a security seen in an account's activity.
type Instrument struct {
	ID            int       `json:"id"`
	AccountID     int       `json:"account_id"`
	Symbol        string    `json:"symbol"`
	Description   string    `json:"description,omitempty"`
	AssetCategory string    `json:"asset_category"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountBalance represents a per-currency cash balance reported by the
// broker.
type AccountBalance struct {
	ID         int             `json:"id"`
	AccountID  int             `json:"account_id"`
	Currency   string          `json:"currency"`
	Cash       decimal.Decimal `json:"cash"`
	ReportDate time.Time       `json:"report_date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AccountSnapshot records the account's total value at sync time. One row
// is appended per successful sync so value history accumulates.
type AccountSnapshot struct {
	ID            int             `json:"id"`
	AccountID     int             `json:"account_id"`
	TotalValue    decimal.Decimal `json:"total_value"`
	CashValue     decimal.Decimal `json:"cash_value"`
	PositionValue decimal.Decimal `json:"position_value"`
	Currency      string          `json:"currency"`
	TakenAt       time.Time       `json:"taken_at"`
}
