package dbclient

import (
	"context"
	"fmt"

	"modelkit/internal/domain"
)

// QueryPage is the result of a read query.
type QueryPage struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Column describes a target column. Type is one of the frame types
// "text", "number", "boolean" or "datetime"; each dialect maps it to a
// native column type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Connector abstracts interaction with an export target database.
type Connector interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// EnsureTable creates table if needed and adds any missing columns.
	EnsureTable(ctx context.Context, table string, cols []Column) error

	// Truncate removes every row from table. A missing table is left alone.
	Truncate(ctx context.Context, table string) error

	// InsertRows inserts rows, each holding one value per entry of cols,
	// and returns how many were written.
	InsertRows(ctx context.Context, table string, cols []string, rows [][]any) (int, error)

	// Query runs a read query and returns at most limit rows (all when
	// limit <= 0).
	Query(ctx context.Context, query string, limit int) (*QueryPage, error)

	// Close closes the connection.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
// The password must be provided separately (from the secret store).
func NewConnector(conn *domain.DatabaseConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", mysqlDialect{}, buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", postgresDialect{}, buildPostgresDSN(conn, password))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
