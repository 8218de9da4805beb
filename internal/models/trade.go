package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade side constants
const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// Asset category constants
const (
	AssetCategoryStock  = "STK"
	AssetCategoryOption = "OPT"
	AssetCategoryBond   = "BOND"
	AssetCategoryCash   = "CASH"
)

// Trade represents one executed fill. Trades are immutable once persisted
// and uniquely keyed by (account_id, execution_id) to prevent duplicate
// ingestion across re-syncs.
type Trade struct {
	ID            int             `json:"id"`
	AccountID     int             `json:"account_id"`
	ExecutionID   string          `json:"execution_id"`
	OrderID       string          `json:"order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	AssetCategory string          `json:"asset_category"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	Commission    decimal.Decimal `json:"commission"`
	Currency      string          `json:"currency"`
	ExecutedAt    time.Time       `json:"executed_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedQuantity returns the quantity signed by side: positive for buys,
// negative for sells. Quantity itself is stored unsigned.
func (t *Trade) SignedQuantity() decimal.Decimal {
	if t.Side == TradeSideSell {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
