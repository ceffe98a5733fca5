package sqlitedb

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// TableStat summarises one table.
type TableStat struct {
	Rows        int64    `json:"rows"`
	Columns     int      `json:"columns"`
	ColumnNames []string `json:"column_names"`
	DateRange   []any    `json:"date_range,omitempty"`
	Regions     []any    `json:"regions,omitempty"`
	Countries   []any    `json:"countries,omitempty"`
}

// TableStats returns row and column counts for every table, plus the date
// range and distinct regions or countries where those columns exist.
func (db *DB) TableStats(ctx context.Context) (map[string]TableStat, error) {
	names, err := db.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]TableStat, len(names))
	for _, name := range names {
		var st TableStat
		if err := db.conn.GetContext(ctx, &st.Rows, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}

		cols, err := db.columns(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			st.ColumnNames = append(st.ColumnNames, c.Name)
		}
		st.Columns = len(cols)

		if slices.Contains(st.ColumnNames, "Date") {
			row := db.conn.QueryRowxContext(ctx, fmt.Sprintf("SELECT MIN(Date), MAX(Date) FROM %s", quoteIdent(name)))
			if vals, err := row.SliceScan(); err == nil {
				for i := range vals {
					vals[i] = normalizeValue(vals[i])
				}
				st.DateRange = vals
			} else {
				db.log.Warn("date range", zap.String("table", name), zap.Error(err))
			}
		}
		if slices.Contains(st.ColumnNames, "Region") {
			st.Regions = db.distinct(ctx, name, "Region")
		}
		if slices.Contains(st.ColumnNames, "Country") {
			st.Countries = db.distinct(ctx, name, "Country")
		}
		stats[name] = st
	}
	return stats, nil
}

func (db *DB) distinct(ctx context.Context, table, column string) []any {
	rows, err := db.conn.QueryxContext(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM %s", quoteIdent(column), quoteIdent(table)))
	if err != nil {
		db.log.Warn("distinct values", zap.String("table", table), zap.String("column", column), zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			break
		}
		out = append(out, normalizeValue(vals[0]))
	}
	return out
}
