package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelkit/internal/dbclient"
	"modelkit/internal/domain"
)

// fakeConnector records the calls a TableDestination makes.
type fakeConnector struct {
	tables    map[string][]dbclient.Column
	truncated []string
	inserts   [][][]any
	cols      []string
}

func (f *fakeConnector) Ping(context.Context) error { return nil }

func (f *fakeConnector) EnsureTable(_ context.Context, table string, cols []dbclient.Column) error {
	if f.tables == nil {
		f.tables = map[string][]dbclient.Column{}
	}
	f.tables[table] = cols
	return nil
}

func (f *fakeConnector) Truncate(_ context.Context, table string) error {
	f.truncated = append(f.truncated, table)
	return nil
}

func (f *fakeConnector) InsertRows(_ context.Context, _ string, cols []string, rows [][]any) (int, error) {
	f.cols = cols
	f.inserts = append(f.inserts, rows)
	return len(rows), nil
}

func (f *fakeConnector) Query(context.Context, string, int) (*dbclient.QueryPage, error) {
	return &dbclient.QueryPage{}, nil
}

func (f *fakeConnector) Close() error { return nil }

var testSchema = &Schema{Fields: []Field{{Name: "name", Type: TypeText}, {Name: "n", Type: TypeNumber}}}

func TestTableDestination_Write(t *testing.T) {
	conn := &fakeConnector{}
	dest := &TableDestination{Conn: conn, BatchSize: 2}

	written, err := dest.Write(context.Background(), "people", testSchema, []Record{
		rec("name", "a", "n", 1),
		rec("name", "b"),
		rec("name", "c", "n", 3),
	}, SyncReplace)
	require.NoError(t, err)

	assert.Equal(t, 3, written)
	assert.Equal(t, []string{"people"}, conn.truncated)
	assert.Equal(t, []dbclient.Column{{Name: "name", Type: TypeText}, {Name: "n", Type: TypeNumber}}, conn.tables["people"])
	assert.Equal(t, []string{"name", "n"}, conn.cols)
	assert.Equal(t, [][][]any{
		{{"a", 1}, {"b", nil}},
		{{"c", 3}},
	}, conn.inserts)
}

func TestTableDestination_RowIDColumnAndAppend(t *testing.T) {
	conn := &fakeConnector{}
	dest := &TableDestination{Conn: conn, RowIDColumn: "_row_id"}

	_, err := dest.Write(context.Background(), "people", testSchema, []Record{rec("name", "a", "n", 1)}, SyncAppend)
	require.NoError(t, err)

	assert.Empty(t, conn.truncated)
	assert.Equal(t, []string{"_row_id", "name", "n"}, conn.cols)
	row := conn.inserts[0][0]
	_, err = uuid.Parse(row[0].(string))
	assert.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, row[1:])
}

func TestTableDestination_ReplaceWithNoRows(t *testing.T) {
	conn := &fakeConnector{}
	written, err := (&TableDestination{Conn: conn}).Write(context.Background(), "people", &Schema{}, nil, SyncReplace)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Equal(t, []string{"people"}, conn.truncated)
	assert.Empty(t, conn.tables)
	assert.Empty(t, conn.inserts)
}

func TestTableDestination_ReplaceWithNoRowsClearsSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{
		Name:   "target",
		Driver: domain.DatabaseDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "target.db"),
	}, "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	dest := &TableDestination{Conn: conn}

	written, err := dest.Write(ctx, "people", testSchema, []Record{rec("name", "a", "n", 1), rec("name", "b", "n", 2)}, SyncReplace)
	require.NoError(t, err)
	require.Equal(t, 2, written)

	schema, records := FromRows(nil)
	written, err = dest.Write(ctx, "people", schema, records, SyncReplace)
	require.NoError(t, err)
	assert.Zero(t, written)

	page, err := conn.Query(ctx, `SELECT name FROM people`, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)

	// A replace into a table that was never created is a no-op.
	_, err = dest.Write(ctx, "missing", schema, records, SyncReplace)
	assert.NoError(t, err)
}

func TestTableDestination_RequiresTable(t *testing.T) {
	_, err := (&TableDestination{Conn: &fakeConnector{}}).Write(context.Background(), "", testSchema, nil, SyncAppend)
	assert.ErrorContains(t, err, "target table is required")
}

func TestCSVDestination_ReplaceThenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "people.csv")
	dest := &CSVDestination{}
	ctx := context.Background()

	_, err := dest.Write(ctx, path, testSchema, []Record{rec("name", "a,b", "n", 1)}, SyncReplace)
	require.NoError(t, err)
	_, err = dest.Write(ctx, path, testSchema, []Record{rec("name", "c", "n", []any{1, 2})}, SyncAppend)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name,n\n\"a,b\",1\nc,\"[1,2]\"\n", string(data))

	_, err = dest.Write(ctx, path, testSchema, []Record{rec("name", "z")}, SyncReplace)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name,n\nz,\n", string(data))
}

func TestJSONLinesDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := (&JSONLinesDestination{}).Write(context.Background(), path, testSchema, []Record{
		rec("n", 1, "name", "a"),
		rec("name", day),
	}, SyncReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"a\",\"n\":1}\n{\"name\":\"2024-03-01\"}\n", string(data))
}
