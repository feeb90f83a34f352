package domain

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// Valid reports whether d names a supported engine.
func (d DatabaseDriver) Valid() bool {
	switch d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB, DatabaseDriverSQLite:
		return true
	}
	return false
}

// DatabaseConnection holds the metadata for connecting to an export target.
// The password is kept out of the config file and resolved from the secret
// store by connection name.
type DatabaseConnection struct {
	Name      string         `json:"name" yaml:"name"`
	Driver    DatabaseDriver `json:"driver" yaml:"driver"`
	Host      string         `json:"host" yaml:"host"`         // hostname, URI or file path (sqlite)
	Port      int            `json:"port" yaml:"port"`         // 0 picks the driver default
	Database  string         `json:"database" yaml:"database"` // db name or empty for sqlite
	Username  string         `json:"username" yaml:"username"`
	SSLMode   string         `json:"sslMode" yaml:"sslMode"`
	ExtraJSON string         `json:"extraJson" yaml:"extraJson"` // driver-specific options
}
