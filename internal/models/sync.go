package models

import "time"

// Sync result status constants
const (
	SyncResultSuccess  = "success"
	SyncResultPartial  = "partial"
	SyncResultNotReady = "not_ready"
	SyncResultError    = "error"
)

// Sync step name constants, in dependency order. Tax lots must land before
// the aggregate position, and the position before the snapshot.
const (
	StepInstruments      = "instruments"
	StepTaxLots          = "tax_lots"
	StepOptionPositions  = "option_positions"
	StepTrades           = "trades"
	StepPosition         = "position"
	StepSnapshot         = "snapshot"
	StepCashTransactions = "cash_transactions"
	StepBalances         = "balances"
	StepInterest         = "interest"
	StepTransfers        = "transfers"
)

// SyncSteps lists every step in execution order.
var SyncSteps = []string{
	StepInstruments,
	StepTaxLots,
	StepOptionPositions,
	StepTrades,
	StepPosition,
	StepSnapshot,
	StepCashTransactions,
	StepBalances,
	StepInterest,
	StepTransfers,
}

// StepResult records the outcome of one sync step.
type StepResult struct {
	Step  string `json:"step"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// SyncResult is the outcome of syncing one account.
type SyncResult struct {
	SyncID     string       `json:"sync_id"`
	AccountID  int          `json:"account_id"`
	Status     string       `json:"status"`
	Steps      []StepResult `json:"steps"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Error      string       `json:"error,omitempty"`
}

// AddStep appends a step outcome.
func (r *SyncResult) AddStep(step string, count int, err error) {
	sr := StepResult{Step: step, OK: err == nil, Count: count}
	if err != nil {
		sr.Error = err.Error()
	}
	r.Steps = append(r.Steps, sr)
}

// FailedSteps returns the names of all failed steps.
func (r *SyncResult) FailedSteps() []string {
	var failed []string
	for _, s := range r.Steps {
		if !s.OK {
			failed = append(failed, s.Step)
		}
	}
	return failed
}

// SyncEvent is the Kafka event shape for sync requests and results.
type SyncEvent struct {
	EventType string      `json:"event_type"`
	AccountID int         `json:"account_id,omitempty"`
	UserID    int         `json:"user_id,omitempty"`
	SyncType  string      `json:"sync_type,omitempty"`
	Result    *SyncResult `json:"result,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
