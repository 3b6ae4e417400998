package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/b3quotes/b3-quote-service/internal/cache"
	"github.com/b3quotes/b3-quote-service/internal/models"
)

// QuoteStore is the read surface the API serves from
type QuoteStore interface {
	GetLatestQuote(ticker string) (*models.Quote, error)
	GetQuoteHistory(ticker string, limit int, from, to *time.Time) ([]*models.Quote, error)
	GetQuotesByDate(date time.Time) ([]*models.Quote, error)
	ListTickers() ([]string, error)
	ListTickersActive(from, to time.Time) ([]string, error)
	ListTradingDates() ([]time.Time, error)
}

// QuoteCache caches latest-quote lookups. May be nil.
type QuoteCache interface {
	GetLatest(ctx context.Context, ticker string) (*models.Quote, error)
	SetLatest(ctx context.Context, q *models.Quote) error
}

const defaultHistoryLimit = 10
const maxHistoryLimit = 365

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  QuoteStore
	cache  QuoteCache
	logger *slog.Logger
}

// NewHandler creates a new Handler. cache may be nil.
func NewHandler(store QuoteStore, quoteCache QuoteCache, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		cache:  quoteCache,
		logger: logger,
	}
}

// GetLatestQuote handles GET /api/v1/quotes/{ticker}/latest
func (h *Handler) GetLatestQuote(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	if h.cache != nil {
		if q, err := h.cache.GetLatest(r.Context(), ticker); err == nil {
			respondJSON(w, http.StatusOK, q)
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("quote cache read failed", "ticker", ticker, "error", err)
		}
	}

	quote, err := h.store.GetLatestQuote(ticker)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetLatest(r.Context(), quote); err != nil {
			h.logger.Warn("quote cache write failed", "ticker", ticker, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, quote)
}

// GetQuoteHistory handles GET /api/v1/quotes/{ticker}
func (h *Handler) GetQuoteHistory(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			http.Error(w, "limit must be between 1 and 365", http.StatusBadRequest)
			return
		}
		limit = n
	}

	from, err := optionalDate(r, "from")
	if err != nil {
		http.Error(w, "invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := optionalDate(r, "to")
	if err != nil {
		http.Error(w, "invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	quotes, err := h.store.GetQuoteHistory(ticker, limit, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(quotes) == 0 {
		http.Error(w, "no quotes found for "+ticker, http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"total":  len(quotes),
		"quotes": quotes,
	})
}

// GetQuotesByDate handles GET /api/v1/dates/{date}/quotes
func (h *Handler) GetQuotesByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	quotes, err := h.store.GetQuotesByDate(date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"total":  len(quotes),
		"quotes": quotes,
	})
}

// ListTickers handles GET /api/v1/tickers
func (h *Handler) ListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.store.ListTickers()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(tickers),
		"tickers": tickers,
	})
}

// ListActiveTickers handles GET /api/v1/tickers/active
func (h *Handler) ListActiveTickers(w http.ResponseWriter, r *http.Request) {
	from, err := requiredDate(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := requiredDate(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tickers, err := h.store.ListTickersActive(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"total":   len(tickers),
		"tickers": tickers,
	})
}

// ListTradingDates handles GET /api/v1/dates
func (h *Handler) ListTradingDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.ListTradingDates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format("2006-01-02")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(formatted),
		"dates": formatted,
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func optionalDate(r *http.Request, param string) (*time.Time, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func requiredDate(r *http.Request, param string) (time.Time, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required (YYYY-MM-DD)", param)
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", param)
	}
	return d, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
