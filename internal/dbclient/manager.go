package dbclient

import (
	"context"
	"fmt"

	"modelkit/internal/model"
)

// QueryManager is a model manager backed by a database query. Registered
// under a dotted path, it gives a model type a fetch capability that lists
// the query's rows as documents.
//
// Either Conn is set, or Open is called on every List and the connector it
// returns is closed afterwards.
type QueryManager struct {
	Conn      Connector
	Open      func(ctx context.Context) (Connector, error)
	Query     string
	ModelName string
	Limit     int
}

// List runs the query and wraps every row as a document model.
func (q *QueryManager) List(ctx context.Context) ([]model.Model, error) {
	conn := q.Conn
	if conn == nil {
		if q.Open == nil {
			return nil, fmt.Errorf("list %s: no connection", q.ModelName)
		}
		opened, err := q.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", q.ModelName, err)
		}
		defer opened.Close()
		conn = opened
	}

	page, err := conn.Query(ctx, q.Query, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.ModelName, err)
	}
	return PageDocuments(q.ModelName, page), nil
}

// PageDocuments converts query rows to document models whose field order
// follows the result columns. NULL cells are left out of the document.
func PageDocuments(name string, page *QueryPage) []model.Model {
	docs := make([]model.Model, 0, len(page.Rows))
	for _, row := range page.Rows {
		data := make(map[string]any, len(page.Columns))
		for i, col := range page.Columns {
			if i < len(row) && row[i] != nil {
				data[col] = row[i]
			}
		}
		docs = append(docs, model.NewDocument(name, data).WithPolicy(model.Policy{Order: page.Columns}))
	}
	return docs
}
