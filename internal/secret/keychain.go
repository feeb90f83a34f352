package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "modelkit"

// exit status of `security find-generic-password` for a missing item
const keychainNotFound = 44

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool. Keys are stored as accounts of the
// "modelkit" service.
type KeychainStore struct {
	command func(name string, args ...string) *exec.Cmd
}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{command: exec.Command}
}

// Set stores a secret in the macOS Keychain, replacing any existing value.
func (k *KeychainStore) Set(key string, value []byte) error {
	cmd := k.command("security", "add-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", string(value),
		"-U", // update if exists
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set %q: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret from the macOS Keychain.
// Returns empty slice and nil error if the key doesn't exist.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	cmd := k.command("security", "find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", // output only the password
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %q: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret from the macOS Keychain. Deleting a missing key
// is not an error.
func (k *KeychainStore) Delete(key string) error {
	cmd := k.command("security", "delete-generic-password",
		"-a", key,
		"-s", keychainService,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainNotFound {
			return nil
		}
		return fmt.Errorf("keychain delete %q: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}
