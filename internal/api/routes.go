package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Account routes
	api.HandleFunc("/accounts", handler.GetAccounts).Methods("GET")
	api.HandleFunc("/accounts", handler.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", handler.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/credentials", handler.UpdateAccountCredentials).Methods("PUT")

	// Sync routes
	api.HandleFunc("/accounts/{id}/sync", handler.SyncAccount).Methods("POST")
	api.HandleFunc("/sync", handler.SyncAllAccounts).Methods("POST")

	// Holdings routes
	api.HandleFunc("/accounts/{id}/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/accounts/{id}/option-positions", handler.GetOptionPositions).Methods("GET")
	api.HandleFunc("/accounts/{id}/lots", handler.GetTaxLots).Methods("GET")
	api.HandleFunc("/accounts/{id}/trades", handler.GetTrades).Methods("GET")
	api.HandleFunc("/accounts/{id}/dividends", handler.GetDividends).Methods("GET")
	api.HandleFunc("/accounts/{id}/cash-transactions", handler.GetCashTransactions).Methods("GET")
	api.HandleFunc("/accounts/{id}/balances", handler.GetBalances).Methods("GET")
	api.HandleFunc("/accounts/{id}/snapshots", handler.GetSnapshots).Methods("GET")

	// Sale routes
	api.HandleFunc("/accounts/{id}/sale-preview", handler.PreviewSale).Methods("POST")
	api.HandleFunc("/accounts/{id}/sales", handler.ExecuteSale).Methods("POST")

	return r
}
