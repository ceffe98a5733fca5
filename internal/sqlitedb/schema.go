package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Column describes a table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	PK       bool   `json:"pk"`
}

// ForeignKey describes a reference from one table to another.
type ForeignKey struct {
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// Table is the schema of one user table.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Schema lists every user table.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

type pragmaColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

type pragmaForeignKey struct {
	ID       int            `db:"id"`
	Seq      int            `db:"seq"`
	Table    string         `db:"table"`
	From     string         `db:"from"`
	To       sql.NullString `db:"to"`
	OnUpdate string         `db:"on_update"`
	OnDelete string         `db:"on_delete"`
	Match    string         `db:"match"`
}

// TableNames lists user tables, skipping SQLite internals.
func (db *DB) TableNames(ctx context.Context) ([]string, error) {
	var names []string
	err := db.conn.SelectContext(ctx, &names,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// Schema loads the schema once and returns the cached copy afterwards.
func (db *DB) Schema(ctx context.Context) (*Schema, error) {
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()
	if db.schema != nil {
		return db.schema, nil
	}

	s, err := retry(ctx, db.log, "schema", 3, db.opts.RetryDelay, db.loadSchema)
	if err != nil {
		return nil, err
	}
	db.log.Info("schema loaded", zap.Int("tables", len(s.Tables)))
	db.schema = s
	return s, nil
}

func (db *DB) loadSchema(ctx context.Context) (*Schema, error) {
	names, err := db.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	s := &Schema{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		cols, err := db.columns(ctx, name)
		if err != nil {
			return nil, err
		}

		var fks []pragmaForeignKey
		if err := db.conn.SelectContext(ctx, &fks, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(name))); err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", name, err)
		}

		t := Table{Name: name, ForeignKeys: []ForeignKey{}}
		for _, c := range cols {
			t.Columns = append(t.Columns, Column{
				Name:     c.Name,
				Type:     c.Type,
				Nullable: c.NotNull == 0,
				PK:       c.PK > 0,
			})
		}
		for _, fk := range fks {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{FromColumn: fk.From, ToTable: fk.Table, ToColumn: fk.To.String})
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

func (db *DB) columns(ctx context.Context, table string) ([]pragmaColumn, error) {
	var cols []pragmaColumn
	if err := db.conn.SelectContext(ctx, &cols, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
