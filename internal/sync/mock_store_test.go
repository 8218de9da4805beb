package sync

import (
	"fmt"
	"sync"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// mockStore implements the Store interface for testing. The mutex matters
// because SyncAllAccounts calls it from concurrent goroutines.
type mockStore struct {
	mu          sync.Mutex
	accounts    map[int]*models.Account
	trades      map[string]*models.Trade // key: executionID
	cash        map[string]*models.CashTransaction
	lots        []*models.TaxLot
	positions   []*models.Position
	options     []*models.OptionPosition
	balances    []*models.AccountBalance
	snapshots   []*models.AccountSnapshot
	instruments map[string]*models.Instrument
	nextTradeID int
	nextLotID   int

	// Track method calls for verification
	MarkSyncStartedCalls      int
	MarkSyncSuccessCalls      int
	MarkSyncIdleCalls         int
	MarkSyncErrorCalls        int
	MarkDisconnectedCalls     int
	ReplaceTaxLotsCalls       int
	ReplacePositionsCalls     int
	ReplaceOptionsCalls       int
	ReplaceBalancesCalls      int
	InsertSnapshotCalls       int
	UpdateLotQuantitiesCalls  int
	LastSyncStatus            string
	LastSyncError             string

	// Error injection
	ReplacePositionsErr error
	InsertTradesErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts:    make(map[int]*models.Account),
		trades:      make(map[string]*models.Trade),
		cash:        make(map[string]*models.CashTransaction),
		instruments: make(map[string]*models.Instrument),
		nextTradeID: 1,
		nextLotID:   1,
	}
}

func (m *mockStore) GetAccountByID(id int) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found")
	}
	return account, nil
}

func (m *mockStore) GetEnabledAccountsByUserID(userID int) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accounts []*models.Account
	for i := 1; i <= len(m.accounts); i++ {
		a, ok := m.accounts[i]
		if ok && a.UserID == userID && a.Enabled {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (m *mockStore) MarkSyncStarted(accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncStartedCalls++
	return nil
}

func (m *mockStore) MarkSyncSuccess(accountID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncSuccessCalls++
	m.LastSyncStatus = status
	return nil
}

func (m *mockStore) MarkSyncIdle(accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncIdleCalls++
	return nil
}

func (m *mockStore) MarkSyncError(accountID int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncErrorCalls++
	m.LastSyncError = message
	return nil
}

func (m *mockStore) MarkDisconnected(accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkDisconnectedCalls++
	return nil
}

func (m *mockStore) UpsertInstruments(instruments []*models.Instrument) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, ins := range instruments {
		key := fmt.Sprintf("%d:%s", ins.AccountID, ins.Symbol)
		if _, exists := m.instruments[key]; exists {
			continue
		}
		m.instruments[key] = ins
		inserted++
	}
	return inserted, nil
}

func (m *mockStore) InsertTrades(trades []*models.Trade) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertTradesErr != nil {
		return 0, m.InsertTradesErr
	}
	inserted := 0
	for _, t := range trades {
		if _, exists := m.trades[t.ExecutionID]; exists {
			continue
		}
		t.ID = m.nextTradeID
		m.nextTradeID++
		m.trades[t.ExecutionID] = t
		inserted++
	}
	return inserted, nil
}

func (m *mockStore) GetTradesByAccount(accountID int) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var trades []*models.Trade
	for i := 1; i < m.nextTradeID; i++ {
		for _, t := range m.trades {
			if t.ID == i && t.AccountID == accountID {
				trades = append(trades, t)
			}
		}
	}
	return trades, nil
}

func (m *mockStore) InsertCashTransactions(transactions []*models.CashTransaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, c := range transactions {
		key := fmt.Sprintf("%d:%s", c.AccountID, c.ExternalID)
		if _, exists := m.cash[key]; exists {
			continue
		}
		m.cash[key] = c
		inserted++
	}
	return inserted, nil
}

func (m *mockStore) ReplaceAccountTaxLots(accountID int, lots []*models.TaxLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceTaxLotsCalls++
	var kept []*models.TaxLot
	for _, l := range m.lots {
		if l.AccountID != accountID {
			kept = append(kept, l)
		}
	}
	for _, l := range lots {
		l.ID = m.nextLotID
		m.nextLotID++
		kept = append(kept, l)
	}
	m.lots = kept
	return nil
}

func (m *mockStore) GetOpenLotsByAccount(accountID int) ([]*models.TaxLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lots []*models.TaxLot
	for _, l := range m.lots {
		if l.AccountID == accountID && l.RemainingQuantity.IsPositive() {
			lots = append(lots, l)
		}
	}
	return lots, nil
}

func (m *mockStore) GetOpenLotsByAccountSymbol(accountID int, symbol string) ([]*models.TaxLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lots []*models.TaxLot
	for _, l := range m.lots {
		if l.AccountID == accountID && l.Symbol == symbol && l.RemainingQuantity.IsPositive() {
			lots = append(lots, l)
		}
	}
	return lots, nil
}

func (m *mockStore) UpdateTaxLotQuantities(lots []*models.TaxLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateLotQuantitiesCalls++
	return nil
}

func (m *mockStore) ReplaceAccountPositions(accountID int, positions []*models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplacePositionsErr != nil {
		return m.ReplacePositionsErr
	}
	m.ReplacePositionsCalls++
	m.positions = positions
	return nil
}

func (m *mockStore) ReplaceAccountOptionPositions(accountID int, positions []*models.OptionPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceOptionsCalls++
	m.options = positions
	return nil
}

func (m *mockStore) ReplaceAccountBalances(accountID int, balances []*models.AccountBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceBalancesCalls++
	m.balances = balances
	return nil
}

func (m *mockStore) InsertSnapshot(s *models.AccountSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertSnapshotCalls++
	m.snapshots = append(m.snapshots, s)
	return nil
}
