package config

const (
	// DefaultDatabasePath is where the catalog database lives when
	// DATABASE_PATH is not set.
	DefaultDatabasePath = "./librarium.db"
)
