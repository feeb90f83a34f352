package secret

import "fmt"

// SecretStore provides a pluggable interface for storing sensitive data
// such as database passwords. Connections never carry their password in
// configuration; it is looked up here by connection name.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// New returns the store for a backend name: "env" or "keychain".
func New(backend string) (SecretStore, error) {
	switch backend {
	case "", "env":
		return NewEnvStore(), nil
	case "keychain":
		return NewKeychainStore(), nil
	default:
		return nil, fmt.Errorf("unknown secret backend %q", backend)
	}
}

// Password reads the password stored for a connection. A missing secret
// yields an empty password.
func Password(s SecretStore, connection string) (string, error) {
	b, err := s.Get(connection)
	if err != nil {
		return "", fmt.Errorf("password for %q: %w", connection, err)
	}
	return string(b), nil
}
