package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// ErrConnectionExhausted means the database stayed unreachable for the
// whole retry budget
var ErrConnectionExhausted = errors.New("database connection retries exhausted")

// DB wraps the PostgreSQL connection
type DB struct {
	conn *sql.DB
}

// RetryPolicy controls connection retries: up to MaxRetries attempts with
// linearly increasing backoff (Interval * attempt). Sleep is injectable so
// tests run without real delays.
type RetryPolicy struct {
	MaxRetries int
	Interval   time.Duration
	Sleep      func(time.Duration)
}

// New opens a database connection and verifies it with a ping
func New(connStr string) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Connect establishes a database session under the retry policy, returning
// ErrConnectionExhausted once the budget runs out
func Connect(connStr string, policy RetryPolicy, logger *slog.Logger) (*DB, error) {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		db, err := New(connStr)
		if err == nil {
			return db, nil
		}
		lastErr = err

		if attempt < policy.MaxRetries {
			wait := policy.Interval * time.Duration(attempt)
			logger.Warn("database connection failed, retrying",
				"attempt", attempt, "max_retries", policy.MaxRetries, "wait", wait, "error", err)
			sleep(wait)
		}
	}

	logger.Error("database unreachable", "max_retries", policy.MaxRetries, "error", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectionExhausted, policy.MaxRetries, lastErr)
}

// Close closes the underlying connection
func (db *DB) Close() error {
	return db.conn.Close()
}
