package flexquery

import (
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// multiDateSentinel marks lot rows that aggregate several acquisition
// dates. Such rows double-count the underlying individual trades and are
// dropped during parsing.
const multiDateSentinel = "MULTI"

// levelOfDetailLot marks open-position rows carrying per-acquisition lot
// detail; levelOfDetailDetail marks itemized cash rows (vs summaries).
const (
	levelOfDetailLot     = "LOT"
	levelOfDetailSummary = "SUMMARY"
	levelOfDetailDetail  = "DETAIL"
)

// ParsedStatement holds the typed records extracted from one statement
// document, already filtered to a single account when a filter is given.
type ParsedStatement struct {
	AccountIDs       []string
	Trades           []ParsedTrade
	OpenPositions    []ParsedPosition
	Lots             []ParsedLot
	OptionExercises  []ParsedExercise
	CashTransactions []ParsedCash
	Balances         []ParsedBalance
	InterestAccruals []ParsedInterest
	Transfers        []ParsedTransfer
	AccountInfo      []ParsedAccountInfo
}

// ParsedTrade is a canonicalized trade row. Numeric and date fields that
// failed to coerce are nil, never zero.
type ParsedTrade struct {
	AccountID     string
	ExecutionID   string
	OrderID       string
	Symbol        string
	Description   string
	AssetCategory string
	BuySell       string
	Quantity      *decimal.Decimal
	Price         *decimal.Decimal
	Proceeds      *decimal.Decimal
	Commission    *decimal.Decimal
	Currency      string
	ExecutedAt    *time.Time
}

// ParsedPosition is a canonicalized summary position row.
type ParsedPosition struct {
	AccountID     string
	Symbol        string
	Description   string
	AssetCategory string
	Quantity      *decimal.Decimal
	CostPerUnit   *decimal.Decimal
	MarkPrice     *decimal.Decimal
	PositionValue *decimal.Decimal
	Currency      string
	PutCall       string
	Underlying    string
	Strike        *decimal.Decimal
	Expiry        *time.Time
}

// ParsedLot is a canonicalized per-acquisition lot row from the broker's
// official lot detail.
type ParsedLot struct {
	AccountID       string
	Symbol          string
	AssetCategory   string
	AcquisitionDate *time.Time
	Quantity        *decimal.Decimal
	CostPerUnit     *decimal.Decimal
	Currency        string
}

// ParsedExercise is a canonicalized option exercise/assignment row.
type ParsedExercise struct {
	AccountID       string
	TransactionType string
	ExecutionID     string
	Symbol          string
	Underlying      string
	AssetCategory   string
	Quantity        *decimal.Decimal
	Price           *decimal.Decimal
	Commission      *decimal.Decimal
	Currency        string
	Date            *time.Time
}

// ParsedCash is a canonicalized cash transaction row.
type ParsedCash struct {
	AccountID   string
	ExternalID  string
	Type        string
	Symbol      string
	Description string
	Amount      *decimal.Decimal
	NetAmount   *decimal.Decimal
	Currency    string
	Date        *time.Time
}

// ParsedBalance is a canonicalized per-currency cash balance row.
type ParsedBalance struct {
	AccountID         string
	Currency          string
	EndingCash        *decimal.Decimal
	EndingSettledCash *decimal.Decimal
	ReportDate        *time.Time
}

// ParsedInterest is a canonicalized interest accrual row.
type ParsedInterest struct {
	AccountID       string
	Currency        string
	InterestAccrued *decimal.Decimal
	EndingBalance   *decimal.Decimal
	FromDate        *time.Time
	ToDate          *time.Time
}

// ParsedTransfer is a canonicalized security transfer row.
type ParsedTransfer struct {
	AccountID     string
	ExternalID    string
	Symbol        string
	Description   string
	AssetCategory string
	Direction     string
	Type          string
	Quantity      *decimal.Decimal
	TransferPrice *decimal.Decimal
	Currency      string
	Date          *time.Time
	CashTransfer  *decimal.Decimal
}

// ParsedAccountInfo is the canonicalized account metadata block.
type ParsedAccountInfo struct {
	AccountID   string
	Alias       string
	Currency    string
	Name        string
	AccountType string
	DateOpened  *time.Time
}

// Parse extracts typed records from a raw statement document. When
// accountFilter is non-empty, statements for other accounts are skipped
// (documents can be multi-account). A missing section yields an empty
// slice; a field that fails to coerce is nil.
func Parse(data []byte, accountFilter string) (*ParsedStatement, error) {
	response, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	parsed := &ParsedStatement{}
	for _, stmt := range response.FlexStatements {
		if accountFilter != "" && stmt.AccountID != accountFilter {
			continue
		}
		parsed.AccountIDs = append(parsed.AccountIDs, stmt.AccountID)
		parsed.Trades = append(parsed.Trades, parseTrades(stmt)...)
		positions, lots := parsePositions(stmt)
		parsed.OpenPositions = append(parsed.OpenPositions, positions...)
		parsed.Lots = append(parsed.Lots, lots...)
		parsed.OptionExercises = append(parsed.OptionExercises, parseExercises(stmt)...)
		parsed.CashTransactions = append(parsed.CashTransactions, parseCash(stmt)...)
		parsed.Balances = append(parsed.Balances, parseBalances(stmt)...)
		parsed.InterestAccruals = append(parsed.InterestAccruals, parseInterest(stmt)...)
		parsed.Transfers = append(parsed.Transfers, parseTransfers(stmt)...)
		if info := parseAccountInfo(stmt); info != nil {
			parsed.AccountInfo = append(parsed.AccountInfo, *info)
		}
	}
	return parsed, nil
}

func parseTrades(stmt FlexStatement) []ParsedTrade {
	var trades []ParsedTrade
	for _, row := range stmt.Trades {
		// Statements emit one empty-ID duplicate per real fill; the
		// non-empty-ID row is authoritative.
		if strings.TrimSpace(row.TradeID) == "" {
			log.Printf("flexquery: dropping trade row with empty execution id (symbol %s)", row.Symbol)
			continue
		}
		trades = append(trades, ParsedTrade{
			AccountID:     stmt.AccountID,
			ExecutionID:   row.TradeID,
			OrderID:       row.IBOrderID,
			Symbol:        row.Symbol,
			Description:   row.Description,
			AssetCategory: row.AssetCategory,
			BuySell:       strings.ToUpper(row.BuySell),
			Quantity:      coerceDecimal(row.Quantity),
			Price:         coerceDecimal(row.TradePrice),
			Proceeds:      coerceDecimal(row.Proceeds),
			Commission:    coerceDecimal(row.IBCommission),
			Currency:      row.Currency,
			ExecutedAt:    coerceTime(row.DateTime, row.TradeDate),
		})
	}
	return trades
}

func parsePositions(stmt FlexStatement) ([]ParsedPosition, []ParsedLot) {
	var positions []ParsedPosition
	var lots []ParsedLot
	for _, row := range stmt.OpenPositions {
		switch row.LevelOfDetail {
		case levelOfDetailLot:
			// Aggregated multi-date lots double-count the underlying
			// individual trades.
			if strings.EqualFold(strings.TrimSpace(row.OpenDateTime), multiDateSentinel) {
				log.Printf("flexquery: dropping aggregated multi-date lot row (symbol %s)", row.Symbol)
				continue
			}
			lots = append(lots, ParsedLot{
				AccountID:       stmt.AccountID,
				Symbol:          row.Symbol,
				AssetCategory:   row.AssetCategory,
				AcquisitionDate: coerceTime(row.OpenDateTime),
				Quantity:        coerceDecimal(row.Position),
				CostPerUnit:     coerceDecimal(row.CostBasisPrice),
				Currency:        row.Currency,
			})
		default:
			// SUMMARY rows (and rows without a level of detail) describe
			// the aggregate position.
			positions = append(positions, ParsedPosition{
				AccountID:     stmt.AccountID,
				Symbol:        row.Symbol,
				Description:   row.Description,
				AssetCategory: row.AssetCategory,
				Quantity:      coerceDecimal(row.Position),
				CostPerUnit:   coerceDecimal(row.CostBasisPrice),
				MarkPrice:     coerceDecimal(row.MarkPrice),
				PositionValue: coerceDecimal(row.PositionValue),
				Currency:      row.Currency,
				PutCall:       row.PutCall,
				Underlying:    row.Underlying,
				Strike:        coerceDecimal(row.Strike),
				Expiry:        coerceTime(row.Expiry),
			})
		}
	}
	return positions, lots
}

func parseExercises(stmt FlexStatement) []ParsedExercise {
	var exercises []ParsedExercise
	for _, row := range stmt.OptionEAE {
		exercises = append(exercises, ParsedExercise{
			AccountID:       stmt.AccountID,
			TransactionType: row.TransactionType,
			ExecutionID:     row.TradeID,
			Symbol:          row.Symbol,
			Underlying:      row.Underlying,
			AssetCategory:   row.AssetCategory,
			Quantity:        coerceDecimal(row.Quantity),
			Price:           coerceDecimal(row.TradePrice),
			Commission:      coerceDecimal(row.Commission),
			Currency:        row.Currency,
			Date:            coerceTime(row.Date),
		})
	}
	return exercises
}

func parseCash(stmt FlexStatement) []ParsedCash {
	var cash []ParsedCash
	for _, row := range stmt.CashTransactions {
		// Summary rows duplicate the itemized DETAIL rows.
		if row.LevelOfDetail != "" && row.LevelOfDetail != levelOfDetailDetail {
			continue
		}
		cash = append(cash, ParsedCash{
			AccountID:   stmt.AccountID,
			ExternalID:  row.TransactionID,
			Type:        row.Type,
			Symbol:      row.Symbol,
			Description: row.Description,
			Amount:      coerceDecimal(row.Amount),
			NetAmount:   coerceDecimal(row.NetCash),
			Currency:    row.Currency,
			Date:        coerceTime(row.DateTime, row.SettleDate),
		})
	}
	return cash
}

// baseSummaryCurrency is the pseudo-currency of the all-currency rollup
// row in the cash report. Real per-currency rows carry ISO codes.
const baseSummaryCurrency = "BASE_SUMMARY"

func parseBalances(stmt FlexStatement) []ParsedBalance {
	var balances []ParsedBalance
	for _, row := range stmt.CashReport {
		if row.Currency == "" || strings.EqualFold(row.Currency, baseSummaryCurrency) {
			continue
		}
		if row.LevelOfDetail != "" && row.LevelOfDetail != levelOfDetailSummary {
			continue
		}
		balances = append(balances, ParsedBalance{
			AccountID:         stmt.AccountID,
			Currency:          row.Currency,
			EndingCash:        coerceDecimal(row.EndingCash),
			EndingSettledCash: coerceDecimal(row.EndingSettledCash),
			ReportDate:        coerceTime(row.ToDate, stmt.ToDate),
		})
	}
	return balances
}

func parseInterest(stmt FlexStatement) []ParsedInterest {
	var accruals []ParsedInterest
	for _, row := range stmt.InterestAccruals {
		accruals = append(accruals, ParsedInterest{
			AccountID:       stmt.AccountID,
			Currency:        row.Currency,
			InterestAccrued: coerceDecimal(row.InterestAccrued),
			EndingBalance:   coerceDecimal(row.EndingBalance),
			FromDate:        coerceTime(row.FromDate),
			ToDate:          coerceTime(row.ToDate),
		})
	}
	return accruals
}

func parseTransfers(stmt FlexStatement) []ParsedTransfer {
	var transfers []ParsedTransfer
	for _, row := range stmt.Transfers {
		transfers = append(transfers, ParsedTransfer{
			AccountID:     stmt.AccountID,
			ExternalID:    row.TransactionID,
			Symbol:        row.Symbol,
			Description:   row.Description,
			AssetCategory: row.AssetCategory,
			Direction:     strings.ToUpper(row.Direction),
			Type:          row.Type,
			Quantity:      coerceDecimal(row.Quantity),
			TransferPrice: coerceDecimal(row.TransferPrice),
			Currency:      row.Currency,
			Date:          coerceTime(row.Date),
			CashTransfer:  coerceDecimal(row.CashTransfer),
		})
	}
	return transfers
}

func parseAccountInfo(stmt FlexStatement) *ParsedAccountInfo {
	info := stmt.AccountInformation
	if info.AccountID == "" && info.Currency == "" {
		return nil
	}
	accountID := info.AccountID
	if accountID == "" {
		accountID = stmt.AccountID
	}
	return &ParsedAccountInfo{
		AccountID:   accountID,
		Alias:       info.Alias,
		Currency:    info.Currency,
		Name:        info.Name,
		AccountType: info.AccountType,
		DateOpened:  coerceTime(info.DateOpened),
	}
}

// timeLayouts are the date/datetime formats statements are known to use.
var timeLayouts = []string{
	"20060102;150405",
	"2006-01-02;15:04:05",
	"20060102",
	"2006-01-02",
}

// coerceDecimal parses a numeric attribute, returning nil when the value
// is empty or malformed. Never returns zero for a bad value: zero would
// silently corrupt cost-basis math downstream.
func coerceDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// coerceTime parses the first candidate that matches a known layout,
// returning nil when none do.
func coerceTime(candidates ...string) *time.Time {
	for _, s := range candidates {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}
