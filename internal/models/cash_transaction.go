package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cash transaction type constants. These mirror the type strings the broker
// statements use so ingested rows can be filtered without re-mapping.
const (
	CashTypeDividend      = "Dividends"
	CashTypePaymentInLieu = "Payment In Lieu Of Dividends"
	CashTypeWithholding   = "Withholding Tax"
	CashTypeInterest      = "Broker Interest Received"
	CashTypeInterestPaid  = "Broker Interest Paid"
	CashTypeFee           = "Other Fees"
	CashTypeDeposit       = "Deposits/Withdrawals"
)

// CashTransaction represents a non-trade cash movement (dividend, interest,
// fee, transfer, tax). Uniquely keyed by (account_id, external_id).
type CashTransaction struct {
	ID              int             `json:"id"`
	AccountID       int             `json:"account_id"`
	ExternalID      string          `json:"external_id"`
	Type            string          `json:"type"`
	Symbol          string          `json:"symbol,omitempty"`
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	Currency        string          `json:"currency"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsDividend reports whether the transaction belongs to the dividend
// read-model (regular dividends plus payments in lieu).
func (c *CashTransaction) IsDividend() bool {
	return c.Type == CashTypeDividend || c.Type == CashTypePaymentInLieu
}

// Dividend is the read-model derived from dividend-typed cash transactions.
type Dividend struct {
	Symbol      string          `json:"symbol"`
	Amount      decimal.Decimal `json:"amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Currency    string          `json:"currency"`
	PaymentDate time.Time       `json:"payment_date"`
}
