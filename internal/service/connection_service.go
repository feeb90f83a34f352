package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"modelkit/internal/dbclient"
	"modelkit/internal/domain"
	"modelkit/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Connection Service: configured database targets
// ─────────────────────────────────────────────────────────────

// ConnectionService resolves configured connections and their passwords
// into live connectors.
type ConnectionService struct {
	conns   []domain.DatabaseConnection
	secrets secret.SecretStore
}

// NewConnectionService creates a ConnectionService. A nil secret store
// means every connection has an empty password.
func NewConnectionService(conns []domain.DatabaseConnection, secrets secret.SecretStore) *ConnectionService {
	return &ConnectionService{conns: conns, secrets: secrets}
}

// List returns the configured connections.
func (s *ConnectionService) List() []domain.DatabaseConnection {
	return s.conns
}

func (s *ConnectionService) get(name string) (*domain.DatabaseConnection, error) {
	conn, ok := lo.Find(s.conns, func(c domain.DatabaseConnection) bool { return c.Name == name })
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", name)
	}
	return &conn, nil
}

// Open opens and pings the named connection. The caller closes it.
func (s *ConnectionService) Open(ctx context.Context, name string) (dbclient.Connector, error) {
	conn, err := s.get(name)
	if err != nil {
		return nil, err
	}

	password := ""
	if s.secrets != nil {
		if password, err = secret.Password(s.secrets, name); err != nil {
			return nil, err
		}
	}

	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	if err := connector.Ping(ctx); err != nil {
		connector.Close()
		return nil, fmt.Errorf("ping %q: %w", name, err)
	}
	return connector, nil
}

// SetPassword stores the password for a configured connection.
func (s *ConnectionService) SetPassword(name, password string) error {
	if _, err := s.get(name); err != nil {
		return err
	}
	if s.secrets == nil {
		return fmt.Errorf("no secret store configured")
	}
	return s.secrets.Set(name, []byte(password))
}

// ConnectionStatus is the outcome of checking one connection.
type ConnectionStatus struct {
	Name   string                `json:"name"`
	Driver domain.DatabaseDriver `json:"driver"`
	Error  string                `json:"error,omitempty"`
}

// Check opens every connection concurrently and reports which respond,
// in configuration order.
func (s *ConnectionService) Check(ctx context.Context) []ConnectionStatus {
	statuses := make([]ConnectionStatus, len(s.conns))
	var wg sync.WaitGroup
	for i, c := range s.conns {
		statuses[i] = ConnectionStatus{Name: c.Name, Driver: c.Driver}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			connector, err := s.Open(ctx, name)
			if err != nil {
				statuses[i].Error = err.Error()
				return
			}
			connector.Close()
		}(i, c.Name)
	}
	wg.Wait()
	return statuses
}
