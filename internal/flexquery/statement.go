package flexquery

import "encoding/xml"

// Raw XML structures for the statement document. Every value is kept as a
// string attribute; numeric and date coercion happens in parse.go so a bad
// field degrades to nil instead of aborting the section.

// FlexQueryResponse is the root element of a statement document.
type FlexQueryResponse struct {
	XMLName        xml.Name        `xml:"FlexQueryResponse"`
	QueryName      string          `xml:"queryName,attr"`
	FlexStatements []FlexStatement `xml:"FlexStatements>FlexStatement"`
}

// FlexStatement holds one account's sections for the report period.
type FlexStatement struct {
	AccountID          string                `xml:"accountId,attr"`
	FromDate           string                `xml:"fromDate,attr"`
	ToDate             string                `xml:"toDate,attr"`
	Trades             []XMLTrade            `xml:"Trades>Trade"`
	OpenPositions      []XMLOpenPosition     `xml:"OpenPositions>OpenPosition"`
	OptionEAE          []XMLOptionEAE        `xml:"OptionEAE>OptionEAE"`
	CashTransactions   []XMLCashTransaction  `xml:"CashTransactions>CashTransaction"`
	CashReport         []XMLCashReport       `xml:"CashReport>CashReportCurrency"`
	InterestAccruals   []XMLInterestAccrual  `xml:"InterestAccruals>InterestAccrualsCurrency"`
	Transfers          []XMLTransfer         `xml:"Transfers>Transfer"`
	AccountInformation XMLAccountInformation `xml:"AccountInformation"`
}

// XMLTrade is one executed fill row.
type XMLTrade struct {
	TradeID       string `xml:"tradeID,attr"`
	IBOrderID     string `xml:"ibOrderID,attr"`
	Symbol        string `xml:"symbol,attr"`
	Description   string `xml:"description,attr"`
	AssetCategory string `xml:"assetCategory,attr"`
	BuySell       string `xml:"buySell,attr"`
	Quantity      string `xml:"quantity,attr"`
	TradePrice    string `xml:"tradePrice,attr"`
	Proceeds      string `xml:"proceeds,attr"`
	IBCommission  string `xml:"ibCommission,attr"`
	Currency      string `xml:"currency,attr"`
	TradeDate     string `xml:"tradeDate,attr"`
	DateTime      string `xml:"dateTime,attr"`
	Exchange      string `xml:"exchange,attr"`
	PutCall       string `xml:"putCall,attr"`
	Underlying    string `xml:"underlyingSymbol,attr"`
}

// XMLOpenPosition is one open position row. levelOfDetail distinguishes
// SUMMARY rollups from LOT rows carrying per-acquisition detail.
type XMLOpenPosition struct {
	Symbol         string `xml:"symbol,attr"`
	Description    string `xml:"description,attr"`
	AssetCategory  string `xml:"assetCategory,attr"`
	LevelOfDetail  string `xml:"levelOfDetail,attr"`
	Position       string `xml:"position,attr"`
	CostBasisPrice string `xml:"costBasisPrice,attr"`
	CostBasisMoney string `xml:"costBasisMoney,attr"`
	MarkPrice      string `xml:"markPrice,attr"`
	PositionValue  string `xml:"positionValue,attr"`
	OpenDateTime   string `xml:"openDateTime,attr"`
	HoldingPeriod  string `xml:"holdingPeriodDateTime,attr"`
	Currency       string `xml:"currency,attr"`
	OriginatingTx  string `xml:"originatingTransactionID,attr"`
	PutCall        string `xml:"putCall,attr"`
	Underlying     string `xml:"underlyingSymbol,attr"`
	Strike         string `xml:"strike,attr"`
	Expiry         string `xml:"expiry,attr"`
}

// XMLOptionEAE is one option exercise/assignment/expiration row.
type XMLOptionEAE struct {
	TransactionType string `xml:"transactionType,attr"`
	TradeID         string `xml:"tradeID,attr"`
	Symbol          string `xml:"symbol,attr"`
	Description     string `xml:"description,attr"`
	AssetCategory   string `xml:"assetCategory,attr"`
	Date            string `xml:"date,attr"`
	Quantity        string `xml:"quantity,attr"`
	TradePrice      string `xml:"tradePrice,attr"`
	Commission      string `xml:"commisionsAndTax,attr"`
	Currency        string `xml:"currency,attr"`
	Underlying      string `xml:"underlyingSymbol,attr"`
}

// XMLCashTransaction is one cash movement row.
type XMLCashTransaction struct {
	TransactionID string `xml:"transactionID,attr"`
	Type          string `xml:"type,attr"`
	Symbol        string `xml:"symbol,attr"`
	Description   string `xml:"description,attr"`
	Amount        string `xml:"amount,attr"`
	NetCash       string `xml:"netCash,attr"`
	Currency      string `xml:"currency,attr"`
	DateTime      string `xml:"dateTime,attr"`
	SettleDate    string `xml:"settleDate,attr"`
	LevelOfDetail string `xml:"levelOfDetail,attr"`
}

// XMLCashReport is one per-currency cash balance row.
type XMLCashReport struct {
	Currency          string `xml:"currency,attr"`
	EndingCash        string `xml:"endingCash,attr"`
	EndingSettledCash string `xml:"endingSettledCash,attr"`
	ToDate            string `xml:"toDate,attr"`
	LevelOfDetail     string `xml:"levelOfDetail,attr"`
}

// XMLInterestAccrual is one interest accrual rollup row per currency.
type XMLInterestAccrual struct {
	Currency        string `xml:"currency,attr"`
	FromDate        string `xml:"fromDate,attr"`
	ToDate          string `xml:"toDate,attr"`
	AccrualReversal string `xml:"accrualReversal,attr"`
	InterestAccrued string `xml:"interestAccrued,attr"`
	EndingBalance   string `xml:"endingAccrualBalance,attr"`
}

// XMLTransfer is one security transfer row.
type XMLTransfer struct {
	TransactionID string `xml:"transactionID,attr"`
	Symbol        string `xml:"symbol,attr"`
	Description   string `xml:"description,attr"`
	AssetCategory string `xml:"assetCategory,attr"`
	Direction     string `xml:"direction,attr"`
	Type          string `xml:"type,attr"`
	Quantity      string `xml:"quantity,attr"`
	TransferPrice string `xml:"transferPrice,attr"`
	Date          string `xml:"date,attr"`
	Currency      string `xml:"currency,attr"`
	Account       string `xml:"account,attr"`
	CashTransfer  string `xml:"cashTransfer,attr"`
}

// XMLAccountInformation is the per-account metadata block.
type XMLAccountInformation struct {
	AccountID   string `xml:"accountId,attr"`
	Alias       string `xml:"acctAlias,attr"`
	Currency    string `xml:"currency,attr"`
	Name        string `xml:"name,attr"`
	AccountType string `xml:"accountType,attr"`
	DateOpened  string `xml:"dateOpened,attr"`
	IBEntity    string `xml:"ibEntity,attr"`
}

// ParseDocument unmarshals a raw statement document.
func ParseDocument(data []byte) (*FlexQueryResponse, error) {
	var response FlexQueryResponse
	if err := xml.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
