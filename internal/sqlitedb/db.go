// Package sqlitedb runs model-generated, read-only SQL against a dataset's
// SQLite file.
package sqlitedb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Options control connection and retry behaviour.
type Options struct {
	BusyTimeout   time.Duration
	QueryTimeout  time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxResultRows int
}

// Result is a tabular query result.
type Result struct {
	Columns   []string `json:"columns"`
	Data      [][]any  `json:"data"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Data) == 0
}

// DB wraps a SQLite connection pool.
type DB struct {
	conn *sqlx.DB
	opts Options
	log  *zap.Logger

	schemaMu sync.Mutex
	schema   *Schema
}

// Open opens the SQLite database at path.
func Open(path string, opts Options, log *zap.Logger) (*DB, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}

	// The connection is read-only twice over: the file is opened with
	// mode=ro and every connection runs with query_only.
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(%d)&_pragma=temp_store(MEMORY)",
		path, opts.BusyTimeout.Milliseconds())
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{conn: conn, opts: opts, log: log}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, db.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}
