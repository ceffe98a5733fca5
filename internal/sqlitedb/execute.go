package sqlitedb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDangerousSQL is returned for statements that could modify the database.
var ErrDangerousSQL = errors.New("dangerous SQL command detected")

// REPLACE is only banned as REPLACE INTO; replace() is a string function.
var reDangerous = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX|REPLACE\s+INTO)\b`)

// Validate rejects statements containing a data or schema modifying command.
func Validate(query string) error {
	if m := reDangerous.FindString(query); m != "" {
		return fmt.Errorf("%w: %s", ErrDangerousSQL, strings.Join(strings.Fields(strings.ToUpper(m)), " "))
	}
	return nil
}

// Normalize strips a trailing semicolon and a leading ANALYZE keyword.
func Normalize(query string) string {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if strings.HasPrefix(strings.ToUpper(q), "ANALYZE ") {
		q = strings.TrimSpace(q[len("ANALYZE "):])
	}
	return q
}

// Execute validates and runs a read-only query.
func (db *DB) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	if err := Validate(query); err != nil {
		db.log.Warn("rejected sql", zap.String("sql", query), zap.Error(err))
		return nil, err
	}
	q := Normalize(query)

	start := time.Now()
	res, err := retry(ctx, db.log, "execute", db.opts.MaxRetries, db.opts.RetryDelay, func(ctx context.Context) (*Result, error) {
		return db.query(ctx, q, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	db.log.Info("query executed",
		zap.Int("rows", len(res.Data)),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (db *DB) query(ctx context.Context, q string, args ...any) (*Result, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Data: [][]any{}}
	for rows.Next() {
		if db.opts.MaxResultRows > 0 && len(res.Data) >= db.opts.MaxResultRows {
			res.Truncated = true
			break
		}
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		res.Data = append(res.Data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	}
	return v
}
