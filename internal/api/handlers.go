package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-ledger/internal/database"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/secrets"
	syncer "github.com/trogers1052/portfolio-ledger/internal/sync"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db           *database.DB
	orchestrator *syncer.Orchestrator
	creds        secrets.Store
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, orchestrator *syncer.Orchestrator, creds secrets.Store) *Handler {
	return &Handler{
		db:           db,
		orchestrator: orchestrator,
		creds:        creds,
	}
}

// CreateAccount handles POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID           int    `json:"user_id"`
		Broker           string `json:"broker"`
		AccountNumber    string `json:"account_number"`
		Currency         string `json:"currency"`
		DefaultLotMethod string `json:"default_lot_method"`
		Credentials      string `json:"credentials,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.Broker == "" || req.AccountNumber == "" {
		http.Error(w, "user_id, broker and account_number are required", http.StatusBadRequest)
		return
	}

	account := &models.Account{
		UserID:           req.UserID,
		Broker:           req.Broker,
		AccountNumber:    req.AccountNumber,
		Currency:         req.Currency,
		DefaultLotMethod: req.DefaultLotMethod,
		Enabled:          true,
	}
	if req.Credentials != "" {
		token, err := h.creds.Encrypt([]byte(req.Credentials))
		if err != nil {
			http.Error(w, "failed to store credentials", http.StatusInternalServerError)
			return
		}
		account.CredentialsToken = token
	}

	if err := h.db.CreateAccount(account); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// GetAccounts handles GET /accounts?user_id=
func (h *Handler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	accounts, err := h.db.GetAccountsByUserID(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, accounts)
}

// GetAccount handles GET /accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.db.GetAccountByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// UpdateAccountCredentials handles PUT /accounts/{id}/credentials
func (h *Handler) UpdateAccountCredentials(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Credentials string `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Credentials == "" {
		http.Error(w, "credentials is required", http.StatusBadRequest)
		return
	}

	token, err := h.creds.Encrypt([]byte(req.Credentials))
	if err != nil {
		http.Error(w, "failed to store credentials", http.StatusInternalServerError)
		return
	}
	if err := h.db.UpdateAccountCredentials(id, token); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncAccount handles POST /accounts/{id}/sync
func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.SyncAccount(r.Context(), id)
	if err != nil {
		respondJSON(w, http.StatusBadGateway, result)
		return
	}
	if result.Status == models.SyncResultNotReady {
		respondJSON(w, http.StatusAccepted, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SyncAllAccounts handles POST /sync
func (h *Handler) SyncAllAccounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	results, err := h.orchestrator.SyncAllAccounts(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// GetPositions handles GET /accounts/{id}/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	positions, err := h.db.GetPositionsByAccount(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetOptionPositions handles GET /accounts/{id}/option-positions
func (h *Handler) GetOptionPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	positions, err := h.db.GetOptionPositionsByAccount(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetTaxLots handles GET /accounts/{id}/lots with optional ?symbol=
func (h *Handler) GetTaxLots(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var lots []*models.TaxLot
	var err error
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		lots, err = h.db.GetOpenLotsByAccountSymbol(id, symbol)
	} else {
		lots, err = h.db.GetOpenLotsByAccount(id)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, lots)
}

// GetTrades handles GET /accounts/{id}/trades with optional ?symbol=
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var trades []*models.Trade
	var err error
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		trades, err = h.db.GetTradesByAccountSymbol(id, symbol)
	} else {
		trades, err = h.db.GetTradesByAccount(id)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetDividends handles GET /accounts/{id}/dividends
func (h *Handler) GetDividends(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	dividends, err := h.db.GetDividendsByAccount(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, dividends)
}

// GetCashTransactions handles GET /accounts/{id}/cash-transactions?limit=
func (h *Handler) GetCashTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transactions, err := h.db.GetCashTransactionsByAccount(id, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// GetBalances handles GET /accounts/{id}/balances
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	balances, err := h.db.GetBalancesByAccount(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, balances)
}

// GetSnapshots handles GET /accounts/{id}/snapshots?limit=
func (h *Handler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := h.db.GetSnapshotsByAccount(id, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, snapshots)
}

type saleRequest struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Method    string          `json:"method,omitempty"`
	SaleDate  string          `json:"sale_date,omitempty"`
}

func (req *saleRequest) validate() (time.Time, string) {
	if req.Symbol == "" {
		return time.Time{}, "symbol is required"
	}
	if !req.Quantity.IsPositive() {
		return time.Time{}, "quantity must be positive"
	}
	if !req.SalePrice.IsPositive() {
		return time.Time{}, "sale_price must be positive"
	}
	if req.SaleDate == "" {
		return time.Now().UTC(), ""
	}
	saleDate, err := time.Parse("2006-01-02", req.SaleDate)
	if err != nil {
		return time.Time{}, "sale_date must be YYYY-MM-DD"
	}
	return saleDate, ""
}

// PreviewSale handles POST /accounts/{id}/sale-preview
func (h *Handler) PreviewSale(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	saleDate, msg := req.validate()
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.PreviewSale(r.Context(), id, req.Symbol, req.Method, req.Quantity, req.SalePrice, saleDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ExecuteSale handles POST /accounts/{id}/sales
func (h *Handler) ExecuteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	saleDate, msg := req.validate()
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.ExecuteSale(r.Context(), id, req.Symbol, req.Method, req.Quantity, req.SalePrice, saleDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func accountID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
