package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Quote routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/quotes/{ticker}/latest", handler.GetLatestQuote).Methods("GET")
	api.HandleFunc("/quotes/{ticker}", handler.GetQuoteHistory).Methods("GET")
	api.HandleFunc("/tickers", handler.ListTickers).Methods("GET")
	api.HandleFunc("/tickers/active", handler.ListActiveTickers).Methods("GET")
	api.HandleFunc("/dates", handler.ListTradingDates).Methods("GET")
	api.HandleFunc("/dates/{date}/quotes", handler.GetQuotesByDate).Methods("GET")

	return r
}
