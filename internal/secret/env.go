package secret

import (
	"os"
	"strings"
	"unicode"
)

// EnvPrefix starts every variable the EnvStore reads.
const EnvPrefix = "MODELKIT_PASSWORD_"

// EnvStore implements SecretStore on process environment variables.
// The key "warehouse-eu" maps to MODELKIT_PASSWORD_WAREHOUSE_EU.
// Set and Delete only affect the current process.
type EnvStore struct {
	Prefix string
}

// NewEnvStore creates an EnvStore using EnvPrefix.
func NewEnvStore() *EnvStore {
	return &EnvStore{Prefix: EnvPrefix}
}

// VarName returns the environment variable holding key.
func (e *EnvStore) VarName(key string) string {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, key)
	return e.Prefix + name
}

func (e *EnvStore) Set(key string, value []byte) error {
	return os.Setenv(e.VarName(key), string(value))
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(e.VarName(key))
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (e *EnvStore) Delete(key string) error {
	return os.Unsetenv(e.VarName(key))
}
