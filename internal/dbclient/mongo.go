package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"modelkit/internal/domain"
	"modelkit/internal/model"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnector implements Connector for MongoDB. Tables are collections;
// each row becomes one document whose keys keep the column order.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is the JSON structure users write for MongoDB queries.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Operation  string         `json:"operation,omitempty"` // find (default) | aggregate
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
	Pipeline   []any          `json:"pipeline,omitempty"` // for aggregate
}

func newMongoConnector(conn *domain.DatabaseConnection, password string) (*mongoConnector, error) {
	uri, dbName := buildMongoURI(conn, password)

	// Mask password in URI for logging
	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s (database %s)", logURI, dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// buildMongoURI returns the connection URI and database name for conn.
// A host that already is a mongodb:// or mongodb+srv:// URI is used as is,
// with <password> placeholders filled in.
func buildMongoURI(conn *domain.DatabaseConnection, password string) (string, string) {
	var uri string
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri = conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := conn.Port
		if port == 0 {
			port = 27017
		}
		if conn.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
		}

		// extraJSON carries authSource, replicaSet, etc.
		if conn.ExtraJSON != "" && conn.ExtraJSON != "{}" {
			var extras map[string]string
			if json.Unmarshal([]byte(conn.ExtraJSON), &extras) == nil && len(extras) > 0 {
				keys := lo.Keys(extras)
				slices.Sort(keys)
				params := lo.Map(keys, func(k string, _ int) string { return k + "=" + extras[k] })
				uri += "/?" + strings.Join(params, "&")
			}
		}
	}

	dbName := conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	return uri, dbName
}

// databaseFromURI extracts the database name from the URI path
// (user:pass@host/DB_NAME?params), defaulting to "test".
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

// unmarshalEJSON re-encodes a map[string]any field and uses bson.UnmarshalExtJSON
// to convert MongoDB Extended JSON types ($oid, $date, $numberLong, etc.) to BSON.
func unmarshalEJSON(field map[string]any) any {
	if field == nil {
		return nil
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return field
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		log.Printf("[MONGO] EJSON parse warning: %v", err)
		return field
	}
	return doc
}

func (m *mongoConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// EnsureTable is a no-op: collections are created on first insert and
// documents carry their own fields.
func (m *mongoConnector) EnsureTable(context.Context, string, []Column) error {
	return nil
}

// Truncate on a missing collection deletes nothing.
func (m *mongoConnector) Truncate(ctx context.Context, table string) error {
	if _, err := m.collection(table).DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

func (m *mongoConnector) InsertRows(ctx context.Context, table string, cols []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	docs := make([]any, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("row %d: %d values for %d columns", i, len(row), len(cols))
		}
		docs[i] = rowDocument(cols, row)
	}
	res, err := m.collection(table).InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insertMany: %w", err)
	}
	log.Printf("[MONGO] Inserted %d docs into %s", len(res.InsertedIDs), table)
	return len(res.InsertedIDs), nil
}

// rowDocument builds an ordered document from a row. Nil cells are left out.
func rowDocument(cols []string, row []any) bson.D {
	doc := make(bson.D, 0, len(cols))
	for j, col := range cols {
		if row[j] == nil {
			continue
		}
		doc = append(doc, bson.E{Key: col, Value: bsonValue(row[j])})
	}
	return doc
}

// bsonValue converts normalized values the driver cannot encode directly.
func bsonValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case *model.Dict:
		doc := make(bson.D, 0, val.Len())
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			doc = append(doc, bson.E{Key: pair.Key, Value: bsonValue(pair.Value)})
		}
		return doc
	case []any:
		return lo.Map(val, func(item any, _ int) any { return bsonValue(item) })
	default:
		return v
	}
}

func (m *mongoConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	if mq.Collection == "" {
		return nil, fmt.Errorf("query must specify 'collection'")
	}
	coll := m.collection(mq.Collection)

	var (
		cursor *mongo.Cursor
		err    error
	)
	switch mq.Operation {
	case "", "find":
		opts := options.Find()
		if mq.Projection != nil {
			opts.SetProjection(unmarshalEJSON(mq.Projection))
		}
		if mq.Sort != nil {
			opts.SetSort(unmarshalEJSON(mq.Sort))
		}
		if limit > 0 {
			opts.SetLimit(int64(limit))
		}
		filter := unmarshalEJSON(mq.Filter)
		if filter == nil {
			filter = bson.D{}
		}
		cursor, err = coll.Find(ctx, filter, opts)
	case "aggregate":
		pipeline := mq.Pipeline
		if pipeline == nil {
			pipeline = []any{}
		}
		if limit > 0 {
			pipeline = append(pipeline, map[string]any{"$limit": limit})
		}
		cursor, err = coll.Aggregate(ctx, pipeline)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", mq.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lo.Ternary(mq.Operation == "", "find", mq.Operation), err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return documentsPage(docs), nil
}

// documentsPage lays documents out as rows. Columns are the union of keys,
// _id first and the rest alphabetical.
func documentsPage(docs []bson.D) *QueryPage {
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if !lo.Contains(columns, elem.Key) {
				columns = append(columns, elem.Key)
			}
		}
	}
	slices.SortStableFunc(columns, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "_id":
			return -1
		case b == "_id":
			return 1
		}
		return strings.Compare(a, b)
	})

	page := &QueryPage{Columns: columns}
	for _, doc := range docs {
		row := make([]any, len(columns))
		for _, elem := range doc {
			row[slices.Index(columns, elem.Key)] = plainValue(elem.Value)
		}
		page.Rows = append(page.Rows, row)
	}
	return page
}

// plainValue turns decoded BSON values into the plain Go values the rest of
// the pipeline understands.
func plainValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = plainValue(elem.Value)
		}
		return out
	case bson.A:
		return lo.Map(val, func(item any, _ int) any { return plainValue(item) })
	default:
		return v
	}
}

func (m *mongoConnector) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
