package flexquery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStatement = `<FlexQueryResponse queryName="activity" type="AF">
<FlexStatements count="2">
<FlexStatement accountId="U1234567" fromDate="20260801" toDate="20260828">
<AccountInformation accountId="U1234567" acctAlias="main" currency="USD" name="Jordan Doe" accountType="Individual" dateOpened="2023-01-05"/>
<Trades>
<Trade tradeID="100001" ibOrderID="900001" symbol="AAPL" description="APPLE INC" assetCategory="STK" buySell="BUY" quantity="10" tradePrice="150.25" proceeds="-1502.50" ibCommission="-1" currency="USD" tradeDate="20260810" dateTime="20260810;093000"/>
<Trade tradeID="" symbol="AAPL" buySell="BUY" quantity="10" tradePrice="150.25" currency="USD" dateTime="20260810;093000"/>
<Trade tradeID="100002" symbol="MSFT" buySell="SELL" quantity="-5" tradePrice="410" proceeds="2050" ibCommission="-1" currency="USD" dateTime="20260812;110000"/>
<Trade tradeID="100003" symbol="TSLA" buySell="BUY" quantity="bogus" tradePrice="250" currency="USD" dateTime="20260813;110000"/>
</Trades>
<OpenPositions>
<OpenPosition symbol="AAPL" assetCategory="STK" levelOfDetail="SUMMARY" position="10" costBasisPrice="150.25" markPrice="180" positionValue="1800" currency="USD"/>
<OpenPosition symbol="AAPL" assetCategory="STK" levelOfDetail="LOT" position="10" costBasisPrice="150.25" openDateTime="20260810;093000" currency="USD"/>
<OpenPosition symbol="VTI" assetCategory="STK" levelOfDetail="LOT" position="25" costBasisPrice="210" openDateTime="MULTI" currency="USD"/>
<OpenPosition symbol="AAPL 260918C00190000" assetCategory="OPT" levelOfDetail="SUMMARY" position="2" costBasisPrice="5.10" markPrice="6" putCall="C" underlyingSymbol="AAPL" strike="190" expiry="20260918" currency="USD"/>
</OpenPositions>
<OptionEAE>
<OptionEAE transactionType="Assignment" tradeID="200001" symbol="AAPL 260918C00190000" underlyingSymbol="AAPL" assetCategory="OPT" date="20260815" quantity="-1" tradePrice="0" currency="USD"/>
</OptionEAE>
<CashTransactions>
<CashTransaction transactionID="300001" type="Dividends" symbol="AAPL" description="AAPL DIVIDEND" amount="24.00" netCash="24.00" currency="USD" dateTime="20260820" levelOfDetail="DETAIL"/>
<CashTransaction transactionID="300002" type="Dividends" symbol="AAPL" amount="24.00" currency="USD" dateTime="20260820" levelOfDetail="SUMMARY"/>
<CashTransaction transactionID="300003" type="Withholding Tax" symbol="AAPL" amount="-3.60" netCash="-3.60" currency="USD" dateTime="20260820" levelOfDetail="DETAIL"/>
</CashTransactions>
<CashReport>
<CashReportCurrency currency="BASE_SUMMARY" endingCash="5120.40"/>
<CashReportCurrency currency="USD" endingCash="5000.40" endingSettledCash="4980.40" toDate="20260828"/>
<CashReportCurrency currency="CAD" endingCash="160" endingSettledCash="160" toDate="20260828"/>
</CashReport>
<InterestAccruals>
<InterestAccrualsCurrency currency="USD" fromDate="20260801" toDate="20260828" interestAccrued="12.34" endingAccrualBalance="12.34"/>
</InterestAccruals>
<Transfers>
<Transfer transactionID="400001" symbol="VTI" assetCategory="STK" direction="IN" type="ACATS" quantity="25" transferPrice="205.50" date="20260805" currency="USD"/>
</Transfers>
</FlexStatement>
<FlexStatement accountId="U7654321" fromDate="20260801" toDate="20260828">
<Trades>
<Trade tradeID="500001" symbol="NVDA" buySell="BUY" quantity="3" tradePrice="120" currency="USD" dateTime="20260811;100000"/>
</Trades>
</FlexStatement>
</FlexStatements>
</FlexQueryResponse>`

func TestParse_Trades(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U1234567")
	require.NoError(t, err)

	// The empty-ID duplicate row is dropped; the bogus-quantity row is
	// kept with a nil quantity.
	require.Len(t, parsed.Trades, 3)

	buy := parsed.Trades[0]
	assert.Equal(t, "100001", buy.ExecutionID)
	assert.Equal(t, "900001", buy.OrderID)
	assert.Equal(t, "BUY", buy.BuySell)
	require.NotNil(t, buy.Quantity)
	assert.True(t, buy.Quantity.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, buy.Price)
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("150.25")))
	require.NotNil(t, buy.ExecutedAt)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC), *buy.ExecutedAt)

	sell := parsed.Trades[1]
	assert.Equal(t, "SELL", sell.BuySell)
	require.NotNil(t, sell.Quantity)
	assert.True(t, sell.Quantity.IsNegative())

	bogus := parsed.Trades[2]
	assert.Equal(t, "100003", bogus.ExecutionID)
	assert.Nil(t, bogus.Quantity)
	require.NotNil(t, bogus.Price)
}

func TestParse_PositionsAndLots(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U1234567")
	require.NoError(t, err)

	// The MULTI lot row is dropped; the AAPL lot survives.
	require.Len(t, parsed.Lots, 1)
	lot := parsed.Lots[0]
	assert.Equal(t, "AAPL", lot.Symbol)
	require.NotNil(t, lot.AcquisitionDate)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC), *lot.AcquisitionDate)

	require.Len(t, parsed.OpenPositions, 2)
	assert.Equal(t, "AAPL", parsed.OpenPositions[0].Symbol)

	option := parsed.OpenPositions[1]
	assert.Equal(t, "OPT", option.AssetCategory)
	assert.Equal(t, "C", option.PutCall)
	assert.Equal(t, "AAPL", option.Underlying)
	require.NotNil(t, option.Strike)
	assert.True(t, option.Strike.Equal(decimal.NewFromInt(190)))
	require.NotNil(t, option.Expiry)
}

func TestParse_CashTransactionsKeepsOnlyDetailRows(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U1234567")
	require.NoError(t, err)

	require.Len(t, parsed.CashTransactions, 2)
	assert.Equal(t, "300001", parsed.CashTransactions[0].ExternalID)
	assert.Equal(t, "Dividends", parsed.CashTransactions[0].Type)
	assert.Equal(t, "Withholding Tax", parsed.CashTransactions[1].Type)
}

func TestParse_BalancesSkipBaseSummary(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U1234567")
	require.NoError(t, err)

	require.Len(t, parsed.Balances, 2)
	usd := parsed.Balances[0]
	assert.Equal(t, "USD", usd.Currency)
	require.NotNil(t, usd.EndingCash)
	assert.True(t, usd.EndingCash.Equal(decimal.RequireFromString("5000.40")))
	assert.Equal(t, "CAD", parsed.Balances[1].Currency)
}

func TestParse_RemainingSections(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U1234567")
	require.NoError(t, err)

	require.Len(t, parsed.OptionExercises, 1)
	assert.Equal(t, "Assignment", parsed.OptionExercises[0].TransactionType)

	require.Len(t, parsed.InterestAccruals, 1)
	require.NotNil(t, parsed.InterestAccruals[0].InterestAccrued)

	require.Len(t, parsed.Transfers, 1)
	assert.Equal(t, "IN", parsed.Transfers[0].Direction)
	require.NotNil(t, parsed.Transfers[0].TransferPrice)

	require.Len(t, parsed.AccountInfo, 1)
	assert.Equal(t, "Jordan Doe", parsed.AccountInfo[0].Name)
}

func TestParse_AccountFilter(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "U7654321")
	require.NoError(t, err)

	assert.Equal(t, []string{"U7654321"}, parsed.AccountIDs)
	require.Len(t, parsed.Trades, 1)
	assert.Equal(t, "NVDA", parsed.Trades[0].Symbol)
	assert.Empty(t, parsed.Lots)
	assert.Empty(t, parsed.Balances)
}

func TestParse_NoFilterMergesStatements(t *testing.T) {
	parsed, err := Parse([]byte(sampleStatement), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"U1234567", "U7654321"}, parsed.AccountIDs)
	assert.Len(t, parsed.Trades, 4)
}

func TestParse_MalformedDocument(t *testing.T) {
	_, err := Parse([]byte("not xml at all <"), "")
	require.Error(t, err)
}

func TestCoerceDecimal(t *testing.T) {
	require.Nil(t, coerceDecimal(""))
	require.Nil(t, coerceDecimal("  "))
	require.Nil(t, coerceDecimal("N/A"))

	d := coerceDecimal(" 12.5 ")
	require.NotNil(t, d)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))
}

func TestCoerceTime(t *testing.T) {
	require.Nil(t, coerceTime("", "MULTI"))

	// Falls through to the first candidate that parses.
	ts := coerceTime("", "20260810;093000")
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC), *ts)

	dateOnly := coerceTime("2026-08-10")
	require.NotNil(t, dateOnly)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), *dateOnly)
}
