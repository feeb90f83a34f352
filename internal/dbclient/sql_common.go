package dbclient

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// dialect covers the SQL differences between the supported engines.
type dialect interface {
	quote(ident string) string
	placeholder(i int) string // 1-based
	columnType(typ string) string
	truncate(table string) string
	tableExists() string // counts tables named by placeholder 1
}

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	dialect    dialect
	db         *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName string, d dialect, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{driverName: driverName, dialect: d, db: db}, nil
}

func (c *sqlConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) EnsureTable(ctx context.Context, table string, cols []Column) error {
	defs := lo.Map(cols, func(col Column, _ int) string {
		return c.dialect.quote(col.Name) + " " + c.dialect.columnType(col.Type)
	})
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		c.dialect.quote(table), strings.Join(defs, ", "))
	if _, err := c.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	existing, err := c.columns(ctx, table)
	if err != nil {
		return err
	}
	for _, col := range cols {
		if lo.Contains(existing, col.Name) {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			c.dialect.quote(table), c.dialect.quote(col.Name), c.dialect.columnType(col.Type))
		if _, err := c.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", col.Name, err)
		}
	}
	return nil
}

// columns lists the current columns of table. An always-false query works
// the same way on every engine, unlike the catalog tables.
func (c *sqlConnector) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", c.dialect.quote(table)))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	return rows.Columns()
}

func (c *sqlConnector) Truncate(ctx context.Context, table string) error {
	var n int
	if err := c.db.QueryRowContext(ctx, c.dialect.tableExists(), table).Scan(&n); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if n == 0 {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, c.dialect.truncate(table)); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

func (c *sqlConnector) InsertRows(ctx context.Context, table string, cols []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := lo.Map(cols, func(col string, _ int) string { return c.dialect.quote(col) })
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = c.dialect.placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.dialect.quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("row %d: %d values for %d columns", i, len(row), len(cols))
		}
		args := lo.Map(row, func(v any, _ int) any { return driverValue(v) })
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func (c *sqlConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	page := &QueryPage{Columns: cols}
	for rows.Next() {
		if limit > 0 && len(page.Rows) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for j, v := range values {
			row[j] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return page, nil
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}

// formatValue converts scanned driver values into plain Go values.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	default:
		return val
	}
}

// driverValue converts a row cell into something every SQL driver accepts.
// Nested sequences or mappings left in a cell are stored as JSON text.
func driverValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32,
		float32, float64:
		return val
	case uint64:
		return float64(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case json.Number:
		return val.String()
	case driver.Valuer:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
