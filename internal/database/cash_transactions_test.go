package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

func testCashTransaction(accountID int, externalID, cashType, symbol string, amount float64, date time.Time) *models.CashTransaction {
	return &models.CashTransaction{
		AccountID:       accountID,
		ExternalID:      externalID,
		Type:            cashType,
		Symbol:          symbol,
		Amount:          decimal.NewFromFloat(amount),
		NetAmount:       decimal.NewFromFloat(amount),
		Currency:        "USD",
		TransactionDate: date,
	}
}

func TestCashTransactionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("InsertCashTransactions dedupes on external id", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
		inserted, err := testDB.InsertCashTransactions([]*models.CashTransaction{
			testCashTransaction(account.ID, "c1", models.CashTypeDividend, "AAPL", 24, date),
			testCashTransaction(account.ID, "c2", models.CashTypeDeposit, "", 1000, date.AddDate(0, 0, 1)),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		inserted, err = testDB.InsertCashTransactions([]*models.CashTransaction{
			testCashTransaction(account.ID, "c1", models.CashTypeDividend, "AAPL", 24, date),
			testCashTransaction(account.ID, "c3", models.CashTypeFee, "", -2.50, date.AddDate(0, 0, 2)),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		count, err := testDB.CountCashTransactionsByAccount(account.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("GetCashTransactionsByAccount orders and limits", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		_, err := testDB.InsertCashTransactions([]*models.CashTransaction{
			testCashTransaction(account.ID, "old", models.CashTypeDeposit, "", 500, date),
			testCashTransaction(account.ID, "mid", models.CashTypeDividend, "VTI", 12, date.AddDate(0, 0, 5)),
			testCashTransaction(account.ID, "new", models.CashTypeDividend, "AAPL", 24, date.AddDate(0, 0, 10)),
		})
		require.NoError(t, err)

		transactions, err := testDB.GetCashTransactionsByAccount(account.ID, 2)
		require.NoError(t, err)
		require.Len(t, transactions, 2)
		assert.Equal(t, "new", transactions[0].ExternalID)
		assert.Equal(t, "mid", transactions[1].ExternalID)
	})

	t.Run("GetDividendsByAccount filters by type", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		_, err := testDB.InsertCashTransactions([]*models.CashTransaction{
			testCashTransaction(account.ID, "d1", models.CashTypeDividend, "AAPL", 24, date),
			testCashTransaction(account.ID, "d2", models.CashTypePaymentInLieu, "VTI", 8, date.AddDate(0, 0, 3)),
			testCashTransaction(account.ID, "x1", models.CashTypeDeposit, "", 1000, date.AddDate(0, 0, 1)),
			testCashTransaction(account.ID, "x2", models.CashTypeInterest, "", 1.25, date.AddDate(0, 0, 2)),
		})
		require.NoError(t, err)

		dividends, err := testDB.GetDividendsByAccount(account.ID)
		require.NoError(t, err)
		require.Len(t, dividends, 2)
		assert.Equal(t, "VTI", dividends[0].Symbol)
		assert.Equal(t, "AAPL", dividends[1].Symbol)
		assert.True(t, dividends[1].Amount.Equal(decimal.NewFromInt(24)))
	})
}
