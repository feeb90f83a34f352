package sources

import (
	"context"
	"fmt"

	"modelkit/internal/dbclient"
	"modelkit/internal/etl"
	"modelkit/internal/model"
)

// ── Database Source ────────────────────────────────────────
// Reads query rows from a configured connection as document models.

// ConnectorProvider opens a connector for a named connection.
// The app layer implements this and injects it at startup.
type ConnectorProvider interface {
	OpenConnector(ctx context.Context, name string) (dbclient.Connector, error)
}

var connectorProvider ConnectorProvider

// SetConnectorProvider is called by the app at startup.
func SetConnectorProvider(p ConnectorProvider) { connectorProvider = p }

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: append([]etl.ConfigField{
			{Key: "connection", Label: "Connection", Type: "string", Required: true, Help: "Name of a configured connection"},
			{Key: "query", Label: "Query", Type: "string", Required: true, Help: "SQL, or a JSON query object for MongoDB"},
		}, documentFields...),
	}
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan model.Model, <-chan error) {
	return etl.Stream(ctx, func() ([]model.Model, error) {
		connName, query := cfg.String("connection"), cfg.String("query")
		if connName == "" || query == "" {
			return nil, fmt.Errorf("connection and query are required")
		}
		if connectorProvider == nil {
			return nil, fmt.Errorf("connector provider not initialized")
		}

		conn, err := connectorProvider.OpenConnector(ctx, connName)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		page, err := conn.Query(ctx, query, 0)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		return withPolicy(cfg, dbclient.PageDocuments(modelName(cfg), page)), nil
	})
}
