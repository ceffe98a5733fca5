package sqlitedb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/sqlitedb/sqlitedbtest"
)

func openSeaLevel(t *testing.T, opts Options) *DB {
	t.Helper()
	db, err := Open(sqlitedbtest.SeaLevel(t), opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("SELECT Region, AVG(Sea_Level_Change) FROM t GROUP BY Region"))

	for _, q := range []string{
		"DROP TABLE t",
		"select 1; delete from t",
		"ATTACH DATABASE 'x' AS y",
		"update t set a = 1",
		"DELETE\nFROM t",
		"DROP\tTABLE t",
		"select 1;\r\nINSERT\tINTO t VALUES (1)",
		"replace  into t values (1)",
		"PRAGMA writable_schema = 1",
	} {
		err := Validate(q)
		assert.ErrorIs(t, err, ErrDangerousSQL, q)
	}
}

func TestValidateAllowsReadQueries(t *testing.T) {
	for _, q := range []string{
		"SELECT REPLACE(Region, ' ', '_') FROM t",
		"SELECT created_at, updated_by FROM t",
		"SELECT * FROM deleted_items",
	} {
		assert.NoError(t, Validate(q), q)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SELECT 1", Normalize("  SELECT 1;  "))
	assert.Equal(t, "SELECT 1", Normalize("ANALYZE SELECT 1;"))
	assert.Equal(t, "SELECT 1", Normalize("analyze SELECT 1"))
}

func TestExecute(t *testing.T) {
	db := openSeaLevel(t, Options{})

	res, err := db.Execute(context.Background(),
		"SELECT Region, MAX(Sea_Level_Change) AS max_change FROM Global_Change_In_Mean_Sea_Level GROUP BY Region ORDER BY Region;")
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "max_change"}, res.Columns)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Baltic Sea", res.Data[0][0])
	assert.InDelta(t, 12.5, res.Data[0][1], 1e-9)
	assert.False(t, res.Truncated)
}

func TestExecuteTruncates(t *testing.T) {
	db := openSeaLevel(t, Options{MaxResultRows: 3})

	res, err := db.Execute(context.Background(), "SELECT * FROM Global_Change_In_Mean_Sea_Level")
	require.NoError(t, err)
	assert.Len(t, res.Data, 3)
	assert.True(t, res.Truncated)
}

func TestExecuteRejectsDangerous(t *testing.T) {
	db := openSeaLevel(t, Options{})

	for _, q := range []string{
		"DELETE FROM Global_Change_In_Mean_Sea_Level",
		"DELETE\nFROM Global_Change_In_Mean_Sea_Level",
		"DROP\tTABLE Global_Change_In_Mean_Sea_Level",
	} {
		_, err := db.Execute(context.Background(), q)
		assert.ErrorIs(t, err, ErrDangerousSQL, q)
	}

	res, err := db.Execute(context.Background(), "SELECT COUNT(*) FROM Global_Change_In_Mean_Sea_Level")
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.Data[0][0])
}

func TestConnectionIsReadOnly(t *testing.T) {
	db := openSeaLevel(t, Options{})
	ctx := context.Background()

	_, err := db.conn.ExecContext(ctx, "DELETE FROM Global_Change_In_Mean_Sea_Level")
	assert.Error(t, err)
	_, err = db.conn.ExecContext(ctx, "CREATE TABLE x (a INTEGER)")
	assert.Error(t, err)

	res, err := db.Execute(ctx, "SELECT COUNT(*) FROM Global_Change_In_Mean_Sea_Level")
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.Data[0][0])
}

func TestExecuteSyntaxError(t *testing.T) {
	db := openSeaLevel(t, Options{MaxRetries: 3})

	_, err := db.Execute(context.Background(), "SELEC nothing")
	assert.ErrorContains(t, err, "database error")
}

func TestSchemaAndStats(t *testing.T) {
	db, err := Open(sqlitedbtest.Emissions(t), Options{}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.Schema(context.Background())
	require.NoError(t, err)
	emissions, ok := schema.Table("emissions")
	require.True(t, ok)
	assert.Len(t, emissions.Columns, 7)
	assert.True(t, emissions.Columns[0].PK)
	assert.False(t, emissions.Columns[1].Nullable)
	assert.Len(t, emissions.ForeignKeys, 4)

	again, err := db.Schema(context.Background())
	require.NoError(t, err)
	assert.Same(t, schema, again)

	sea := openSeaLevel(t, Options{})
	stats, err := sea.TableStats(context.Background())
	require.NoError(t, err)
	st := stats["Global_Change_In_Mean_Sea_Level"]
	assert.EqualValues(t, 12, st.Rows)
	assert.Equal(t, 7, st.Columns)
	assert.Equal(t, []any{"1995-01-01", "2000-01-01"}, st.DateRange)
	assert.ElementsMatch(t, []any{"Baltic Sea", "North Sea"}, st.Regions)
	assert.Equal(t, []any{"World"}, st.Countries)
}

func TestRetryTransient(t *testing.T) {
	var calls int
	out, err := retry(context.Background(), zap.NewNop(), "test", 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = retry(context.Background(), zap.NewNop(), "test", 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("no such table: x")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
