package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/b3quotes/b3-quote-service/internal/models"
)

// UpsertQuotes inserts or updates a batch of quotes keyed by
// (ticker, trading_date). The whole batch commits in one transaction; a
// mid-batch failure rolls back the entire day. Returns rows affected,
// inserts and updates combined.
func (db *DB) UpsertQuotes(quotes []models.Quote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO quotes (ticker, trading_date, open, close, high, low, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trading_date) DO UPDATE SET
			open = EXCLUDED.open,
			close = EXCLUDED.close,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	var affected int64
	for _, q := range quotes {
		res, err := stmt.Exec(q.Ticker, q.TradingDate, q.Open, q.Close, q.High, q.Low, q.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert quote for %s: %w", q.Ticker, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit quote batch: %w", err)
	}
	return affected, nil
}

// Truncate removes all quotes and resets the identity counter. Used only by
// full-reload workflows, never by the per-day pipeline.
func (db *DB) Truncate() error {
	if _, err := db.conn.Exec(`TRUNCATE TABLE quotes RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate quotes: %w", err)
	}
	return nil
}

const quoteColumns = `id, ticker, trading_date, open, close, high, low, volume, ingested_at`

// GetLatestQuote retrieves the most recent quote for a ticker
func (db *DB) GetLatestQuote(ticker string) (*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quotes
		WHERE ticker = $1
		ORDER BY trading_date DESC
		LIMIT 1
	`, quoteColumns)
	return db.scanQuote(db.conn.QueryRow(query, ticker), fmt.Sprintf("no quotes found for %s", ticker))
}

// GetQuoteHistory retrieves quotes for a ticker ordered by date descending,
// optionally bounded by an inclusive date range
func (db *DB) GetQuoteHistory(ticker string, limit int, from, to *time.Time) ([]*models.Quote, error) {
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE ticker = $1`, quoteColumns)
	args := []interface{}{ticker}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND trading_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND trading_date <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY trading_date DESC LIMIT $%d", len(args))

	return db.scanQuotes(query, args...)
}

// GetQuotesByDate retrieves every quote stored for one trading date
func (db *DB) GetQuotesByDate(date time.Time) ([]*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quotes
		WHERE trading_date = $1
		ORDER BY ticker ASC
	`, quoteColumns)
	return db.scanQuotes(query, date)
}

// ListTickers returns all distinct tickers, sorted
func (db *DB) ListTickers() ([]string, error) {
	return db.listStrings(`SELECT DISTINCT ticker FROM quotes ORDER BY ticker`)
}

// ListTickersActive returns the distinct tickers with at least one quote in
// the inclusive date range
func (db *DB) ListTickersActive(from, to time.Time) ([]string, error) {
	return db.listStrings(
		`SELECT DISTINCT ticker FROM quotes WHERE trading_date >= $1 AND trading_date <= $2 ORDER BY ticker`,
		from, to,
	)
}

// ListTradingDates returns all distinct trading dates, newest first
func (db *DB) ListTradingDates() ([]time.Time, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT trading_date FROM quotes ORDER BY trading_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan trading date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (db *DB) listStrings(query string, args ...interface{}) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (db *DB) scanQuote(row *sql.Row, notFoundMsg string) (*models.Quote, error) {
	var q models.Quote
	err := row.Scan(&q.ID, &q.Ticker, &q.TradingDate, &q.Open, &q.Close, &q.High, &q.Low, &q.Volume, &q.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s", notFoundMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return &q, nil
}

func (db *DB) scanQuotes(query string, args ...interface{}) ([]*models.Quote, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		var q models.Quote
		err := rows.Scan(&q.ID, &q.Ticker, &q.TradingDate, &q.Open, &q.Close, &q.High, &q.Low, &q.Volume, &q.IngestedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, &q)
	}
	return quotes, rows.Err()
}
