package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// fakeLiveClient implements the LiveClient interface for testing
type fakeLiveClient struct {
	positions    []LivePosition
	transactions []LiveTransaction
	balances     []LiveBalance
	err          error
	sessions     []string
}

func (f *fakeLiveClient) GetPositions(ctx context.Context, sessionToken string) ([]LivePosition, error) {
	f.sessions = append(f.sessions, sessionToken)
	return f.positions, f.err
}

func (f *fakeLiveClient) GetTransactions(ctx context.Context, sessionToken string) ([]LiveTransaction, error) {
	return f.transactions, f.err
}

func (f *fakeLiveClient) GetBalances(ctx context.Context, sessionToken string) ([]LiveBalance, error) {
	return f.balances, f.err
}

// fakeCreds implements the secrets.Store interface for testing
type fakeCreds struct {
	err error
}

func (f *fakeCreds) Encrypt(payload []byte) (string, error) {
	return "enc:" + string(payload), nil
}

func (f *fakeCreds) Decrypt(token string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("session-abc"), nil
}

func TestSnapshotAdapter_MissingCredentialsFailsAuth(t *testing.T) {
	store := newMockStore()
	account := testAccount(1, models.BrokerRobinhood)
	adapter := NewSnapshotAdapter(&fakeLiveClient{}, store, &fakeCreds{})

	result, err := adapter.Sync(context.Background(), account)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamAuth)
	assert.Nil(t, result)
}

func TestSnapshotAdapter_UndecryptableCredentialsFailsAuth(t *testing.T) {
	store := newMockStore()
	account := testAccount(1, models.BrokerRobinhood)
	account.CredentialsToken = "garbage"
	adapter := NewSnapshotAdapter(&fakeLiveClient{}, store, &fakeCreds{err: errors.New("cipher: message authentication failed")})

	_, err := adapter.Sync(context.Background(), account)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamAuth)
}

func TestSnapshotAdapter_ReconstructsLotsAndMarksPositions(t *testing.T) {
	store := newMockStore()
	account := testAccount(1, models.BrokerRobinhood)
	account.CredentialsToken = "enc:session-abc"

	client := &fakeLiveClient{
		positions: []LivePosition{
			{Symbol: "TSLA", Quantity: decimal.NewFromInt(60), AverageCost: decimal.NewFromInt(200), LastPrice: decimal.NewFromInt(250), Currency: "USD"},
		},
		transactions: []LiveTransaction{
			{ID: "rh1", Type: "trade", Side: "buy", Symbol: "TSLA", Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(200), Currency: "USD", ExecutedAt: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)},
			{ID: "rh2", Type: "trade", Side: "sell", Symbol: "TSLA", Quantity: decimal.NewFromInt(40), Price: decimal.NewFromInt(240), Currency: "USD", ExecutedAt: time.Date(2025, 9, 2, 15, 0, 0, 0, time.UTC)},
			{ID: "rh3", Type: "dividend", Symbol: "TSLA", Amount: decimal.NewFromInt(10), Fees: decimal.NewFromInt(1), Currency: "USD", ExecutedAt: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		},
		balances: []LiveBalance{{Currency: "USD", Cash: decimal.NewFromInt(9600)}},
	}
	adapter := NewSnapshotAdapter(client, store, &fakeCreds{})

	result, err := adapter.Sync(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, result.Steps, len(models.SyncSteps))
	for i, step := range result.Steps {
		assert.Equal(t, models.SyncSteps[i], step.Step)
		assert.True(t, step.OK, "step %s failed: %s", step.Step, step.Error)
	}

	// The decrypted session token reaches the live API.
	require.NotEmpty(t, client.sessions)
	assert.Equal(t, "session-abc", client.sessions[0])

	// Lots are reconstructed from the trade history: buy 100, sell 40.
	require.Len(t, store.lots, 1)
	lot := store.lots[0]
	assert.Equal(t, models.LotSourceReconstructed, lot.Source)
	assert.True(t, lot.RemainingQuantity.Equal(decimal.NewFromInt(60)), "remaining = %s", lot.RemainingQuantity)

	// The aggregate position is marked with the live last price.
	require.Len(t, store.positions, 1)
	position := store.positions[0]
	assert.Equal(t, "TSLA", position.Symbol)
	assert.True(t, position.MarkPrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, position.MarketValue.Equal(decimal.NewFromInt(15000)))

	// Dividend lands as a cash transaction, net of fees.
	dividend, ok := store.cash["1:rh3"]
	require.True(t, ok, "dividend not recorded")
	assert.Equal(t, models.CashTypeDividend, dividend.Type)
	assert.True(t, dividend.NetAmount.Equal(decimal.NewFromInt(9)))

	// Snapshot totals marked positions plus cash.
	require.Len(t, store.snapshots, 1)
	assert.True(t, store.snapshots[0].TotalValue.Equal(decimal.NewFromInt(24600)),
		"total = %s", store.snapshots[0].TotalValue)
}

func TestSnapshotAdapter_EmptyHistoryKeepsExistingLots(t *testing.T) {
	store := newMockStore()
	account := testAccount(1, models.BrokerRobinhood)
	account.CredentialsToken = "enc:session-abc"
	store.lots = []*models.TaxLot{
		{
			ID:                3,
			AccountID:         1,
			Symbol:            "VTI",
			AcquisitionDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			OriginalQuantity:  decimal.NewFromInt(10),
			RemainingQuantity: decimal.NewFromInt(10),
			CostPerUnit:       decimal.NewFromInt(220),
			CostBasis:         decimal.NewFromInt(2200),
		},
	}
	adapter := NewSnapshotAdapter(&fakeLiveClient{}, store, &fakeCreds{})

	result, err := adapter.Sync(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 0, store.ReplaceTaxLotsCalls)
	require.Len(t, store.lots, 1)
	assert.Equal(t, 3, store.lots[0].ID)
	assert.Empty(t, result.FailedSteps())
}

func TestHTTPLiveClient_AuthAndDecoding(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/positions":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"symbol":"TSLA","quantity":"60","average_cost":"200","last_price":"250","currency":"USD"}]`))
		case "/transactions":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewHTTPLiveClient(server.URL, server.Client())

	positions, err := client.GetPositions(context.Background(), "session-abc")
	require.NoError(t, err)
	assert.Equal(t, "Bearer session-abc", gotAuth)
	require.Len(t, positions, 1)
	assert.Equal(t, "TSLA", positions[0].Symbol)
	assert.True(t, positions[0].LastPrice.Equal(decimal.NewFromInt(250)))

	_, err = client.GetTransactions(context.Background(), "session-abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamAuth)

	_, err = client.GetBalances(context.Background(), "session-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}