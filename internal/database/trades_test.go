package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-ledger/internal/models"
)

func testTrade(accountID int, executionID, symbol, side string, quantity, price float64, executedAt time.Time) *models.Trade {
	return &models.Trade{
		AccountID:     accountID,
		ExecutionID:   executionID,
		Symbol:        symbol,
		Side:          side,
		AssetCategory: models.AssetCategoryStock,
		Quantity:      decimal.NewFromFloat(quantity),
		Price:         decimal.NewFromFloat(price),
		Proceeds:      decimal.NewFromFloat(-quantity * price),
		Commission:    decimal.NewFromFloat(-1),
		Currency:      "USD",
		ExecutedAt:    executedAt,
	}
}

func TestTradesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("InsertTrades dedupes on execution id", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		executedAt := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
		batch := []*models.Trade{
			testTrade(account.ID, "e1", "AAPL", models.TradeSideBuy, 10, 150.25, executedAt),
			testTrade(account.ID, "e2", "MSFT", models.TradeSideSell, 5, 410, executedAt.Add(time.Hour)),
		}

		inserted, err := testDB.InsertTrades(batch)
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		// Re-syncing an overlapping period inserts only the new row.
		overlap := []*models.Trade{
			testTrade(account.ID, "e2", "MSFT", models.TradeSideSell, 5, 410, executedAt.Add(time.Hour)),
			testTrade(account.ID, "e3", "AAPL", models.TradeSideBuy, 3, 151, executedAt.Add(2*time.Hour)),
		}
		inserted, err = testDB.InsertTrades(overlap)
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		count, err := testDB.CountTradesByAccount(account.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		exists, err := testDB.TradeExistsByExecutionID(account.ID, "e1")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = testDB.TradeExistsByExecutionID(account.ID, "nope")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("GetTradesByAccount returns chronological order", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		base := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
		batch := []*models.Trade{
			testTrade(account.ID, "late", "AAPL", models.TradeSideSell, 5, 180, base.Add(48*time.Hour)),
			testTrade(account.ID, "early", "AAPL", models.TradeSideBuy, 10, 150, base),
			testTrade(account.ID, "mid", "AAPL", models.TradeSideBuy, 5, 160, base.Add(24*time.Hour)),
		}
		_, err := testDB.InsertTrades(batch)
		require.NoError(t, err)

		trades, err := testDB.GetTradesByAccount(account.ID)
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, "early", trades[0].ExecutionID)
		assert.Equal(t, "mid", trades[1].ExecutionID)
		assert.Equal(t, "late", trades[2].ExecutionID)
		assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(10)))
	})

	t.Run("GetTradesByAccountSymbol filters", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.CreateTestAccount(t)

		base := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
		batch := []*models.Trade{
			testTrade(account.ID, "a1", "AAPL", models.TradeSideBuy, 10, 150, base),
			testTrade(account.ID, "m1", "MSFT", models.TradeSideBuy, 5, 300, base),
		}
		_, err := testDB.InsertTrades(batch)
		require.NoError(t, err)

		trades, err := testDB.GetTradesByAccountSymbol(account.ID, "AAPL")
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "a1", trades[0].ExecutionID)
	})
}
