package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

func TestAccountsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("CreateAccount applies defaults", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := &models.Account{
			UserID:        1,
			Broker:        models.BrokerIBKR,
			AccountNumber: "U1234567",
			Enabled:       true,
		}

		err := testDB.CreateAccount(account)
		require.NoError(t, err)
		assert.NotZero(t, account.ID)
		assert.Equal(t, "USD", account.Currency)
		assert.Equal(t, models.LotMethodFIFO, account.DefaultLotMethod)
		assert.Equal(t, models.SyncStatusIdle, account.SyncStatus)
		assert.Equal(t, models.ConnectionConnected, account.ConnectionStatus)

		loaded, err := testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, account.AccountNumber, loaded.AccountNumber)
		assert.Empty(t, loaded.SyncErrorMessage)
		assert.Nil(t, loaded.LastSuccessfulSync)
	})

	t.Run("CreateAccount rejects duplicate broker account", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := &models.Account{UserID: 1, Broker: models.BrokerIBKR, AccountNumber: "U1111111"}
		require.NoError(t, testDB.CreateAccount(first))

		dup := &models.Account{UserID: 2, Broker: models.BrokerIBKR, AccountNumber: "U1111111"}
		err := testDB.CreateAccount(dup)
		require.Error(t, err)
	})

	t.Run("GetEnabledAccountsByUserID filters disabled accounts", func(t *testing.T) {
		testDB.TruncateAll(t)

		enabled := &models.Account{UserID: 1, Broker: models.BrokerIBKR, AccountNumber: "U1111111", Enabled: true}
		disabled := &models.Account{UserID: 1, Broker: models.BrokerRobinhood, AccountNumber: "RH22222", Enabled: false}
		require.NoError(t, testDB.CreateAccount(enabled))
		require.NoError(t, testDB.CreateAccount(disabled))

		accounts, err := testDB.GetEnabledAccountsByUserID(1)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "U1111111", accounts[0].AccountNumber)

		all, err := testDB.GetAccountsByUserID(1)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("sync lifecycle transitions", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		require.NoError(t, testDB.MarkSyncStarted(account.ID))
		loaded, err := testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusRunning, loaded.SyncStatus)
		assert.NotNil(t, loaded.LastSyncAttempt)
		assert.Nil(t, loaded.LastSuccessfulSync)

		require.NoError(t, testDB.MarkSyncError(account.ID, "report fetch failed"))
		loaded, err = testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusError, loaded.SyncStatus)
		assert.Equal(t, "report fetch failed", loaded.SyncErrorMessage)

		require.NoError(t, testDB.MarkSyncSuccess(account.ID, models.SyncStatusSuccess))
		loaded, err = testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusSuccess, loaded.SyncStatus)
		assert.Empty(t, loaded.SyncErrorMessage)
		assert.NotNil(t, loaded.LastSuccessfulSync)

		require.NoError(t, testDB.MarkSyncIdle(account.ID))
		loaded, err = testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusIdle, loaded.SyncStatus)
		// Idle does not clear the success marker.
		assert.NotNil(t, loaded.LastSuccessfulSync)
	})

	t.Run("MarkDisconnected and credentials update", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		require.NoError(t, testDB.MarkDisconnected(account.ID))
		loaded, err := testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ConnectionDisconnected, loaded.ConnectionStatus)

		require.NoError(t, testDB.UpdateAccountCredentials(account.ID, "encrypted-token"))
		loaded, err = testDB.GetAccountByID(account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ConnectionConnected, loaded.ConnectionStatus)
		assert.Equal(t, "encrypted-token", loaded.CredentialsToken)
	})

	t.Run("updates on missing account fail", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.MarkSyncStarted(424242)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account not found")
	})
}
