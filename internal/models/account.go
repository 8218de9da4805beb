package models

import "time"

// Broker constants
const (
	BrokerIBKR      = "IBKR"
	BrokerRobinhood = "ROBINHOOD"
)

// Sync status constants
const (
	SyncStatusIdle    = "IDLE"
	SyncStatusRunning = "RUNNING"
	SyncStatusSuccess = "SUCCESS"
	SyncStatusPartial = "PARTIAL"
	SyncStatusError   = "ERROR"
)

// Connection status constants
const (
	ConnectionConnected    = "CONNECTED"
	ConnectionDisconnected = "DISCONNECTED"
)

// Lot selection method constants
const (
	LotMethodFIFO = "FIFO"
	LotMethodLIFO = "LIFO"
	LotMethodHIFO = "HIFO"
)

// Account represents one brokerage account owned by a user
type Account struct {
	ID                 int        `json:"id"`
	UserID             int        `json:"user_id"`
	Broker             string     `json:"broker"`
	AccountNumber      string     `json:"account_number"`
	Currency           string     `json:"currency"`
	Enabled            bool       `json:"enabled"`
	DefaultLotMethod   string     `json:"default_lot_method"`
	SyncStatus         string     `json:"sync_status"`
	SyncErrorMessage   string     `json:"sync_error_message,omitempty"`
	ConnectionStatus   string     `json:"connection_status"`
	CredentialsToken   string     `json:"-"`
	LastSyncAttempt    *time.Time `json:"last_sync_attempt,omitempty"`
	LastSuccessfulSync *time.Time `json:"last_successful_sync,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
